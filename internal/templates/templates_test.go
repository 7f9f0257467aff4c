package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/internal/models"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"TITLE", "OPTIONS", "LINK", "DEADLINE"}, Placeholders(models.DraftShare))
	assert.Len(t, Placeholders(models.DraftResult), 11)
	assert.Len(t, Placeholders(models.DraftMonthly), 9)
	assert.Nil(t, Placeholders(models.DraftType("OTHER")))

	p := Placeholders(models.DraftShare)
	p[0] = "CHANGED"
	assert.Equal(t, "TITLE", Placeholders(models.DraftShare)[0])
}

func TestValidateShare(t *testing.T) {
	v := Validate(models.DraftShare, "Hi {{TITLE}}, click {{LINK}}, enjoy {{BOGUS}}")
	assert.Equal(t, []string{"BOGUS"}, v.Invalid)
	assert.Equal(t, []string{"OPTIONS", "DEADLINE"}, v.Missing)

	err := v.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPlaceholder)
	assert.Contains(t, err.Error(), "BOGUS")
}

func TestValidateDedupesAndSortsInvalid(t *testing.T) {
	v := Validate(models.DraftShare, "{{ZED}} {{ALPHA}} {{ZED}} {{TITLE}} {{OPTIONS}} {{LINK}} {{DEADLINE}}")
	assert.Equal(t, []string{"ALPHA", "ZED"}, v.Invalid)
	assert.Empty(t, v.Missing)
}

func TestValidateIgnoresOtherBraces(t *testing.T) {
	v := Validate(models.DraftShare, "{{ title }} {single} {{lower}} {{TITLE}}")
	assert.Empty(t, v.Invalid)
	assert.NoError(t, v.Err())
	assert.NotContains(t, v.Missing, "TITLE")
}

func TestRender(t *testing.T) {
	assert.Equal(t, "Quiz — Quiz", Render("{{TITLE}} — {{TITLE}}", map[string]string{"TITLE": "Quiz"}))
	assert.Equal(t, "Hello {{UNKNOWN}}", Render("Hello {{UNKNOWN}}", map[string]string{"TITLE": "x"}))
	assert.Equal(t, "{{LINK}}", Render("{{TITLE}}", map[string]string{"TITLE": "{{LINK}}", "LINK": "nope"}))
	assert.Equal(t, "", Render("", nil))
}

func TestShareValues(t *testing.T) {
	q := &models.Quiz{
		Title:    "Capital of France",
		Slug:     "capital-of-france",
		Options:  []string{"Paris", "Lyon"},
		Deadline: time.Date(2026, time.March, 5, 18, 30, 0, 0, time.UTC),
	}
	v := ShareValues(q, "https://qwinhub.com/")
	assert.Equal(t, "Paris, Lyon", v["OPTIONS"])
	assert.Equal(t, "https://qwinhub.com/quiz/capital-of-france", v["LINK"])
	assert.Equal(t, "March 5, 2026 6:30 PM UTC", v["DEADLINE"])

	out := Render("{{TITLE}}: {{OPTIONS}} at {{LINK}}", v)
	assert.Equal(t, "Capital of France: Paris, Lyon at https://qwinhub.com/quiz/capital-of-france", out)
}

func TestResultValues(t *testing.T) {
	q := &models.Quiz{Title: "Q", Options: []string{"A", "B"}}
	rs := []models.Response{
		{Name: "Ann", Phone: "+1", IsCorrect: true},
		{Name: "Bob", Phone: "+2"},
		{Name: "Cid", Phone: "+3", IsCorrect: true},
	}
	v := ResultValues(q, rs, &models.Winner{Name: "Cid", Phone: "+3"})
	assert.Equal(t, "3", v["TOTAL_RESPONSES"])
	assert.Equal(t, "2", v["CORRECT_COUNT"])
	assert.Equal(t, "1", v["WRONG_COUNT"])
	assert.Equal(t, "Ann, Cid", v["CORRECT_NAMES"])
	assert.Equal(t, "+2", v["WRONG_PHONES"])
	assert.Equal(t, "Cid", v["WINNER_NAME"])

	v = ResultValues(q, nil, nil)
	assert.Equal(t, "0", v["TOTAL_RESPONSES"])
	assert.Equal(t, "", v["WINNER_NAME"])
}

func TestMonthlyValues(t *testing.T) {
	ws := []models.Winner{{Name: "Ann", Phone: "+1"}, {Name: "Bob", Phone: "+2"}}
	v := MonthlyValues(&models.Quiz{Title: "Q"}, time.February, 2026, ws, &models.MonthlyWinner{Name: "Bob", Phone: "+2"})
	assert.Equal(t, "February", v["MONTH"])
	assert.Equal(t, "2026", v["YEAR"])
	assert.Equal(t, "2", v["TOTAL_WINNERS"])
	assert.Equal(t, "Ann, Bob", v["WINNER_NAMES"])
	assert.Equal(t, "Bob", v["MONTHLY_WINNER_NAME"])

	for _, name := range Placeholders(models.DraftMonthly) {
		_, ok := v[name]
		assert.True(t, ok, name)
	}
}
