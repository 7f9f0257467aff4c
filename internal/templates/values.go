package templates

import (
	"strconv"
	"strings"
	"time"

	"github.com/qwinhub/backend/internal/models"
)

// DeadlineLayout is how deadlines appear in rendered mail.
const DeadlineLayout = "January 2, 2006 3:04 PM MST"

const listSep = ", "

// QuizLink is the public URL of a quiz.
func QuizLink(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/quiz/" + slug
}

// ShareValues fills the SHARE vocabulary for q.
func ShareValues(q *models.Quiz, baseURL string) map[string]string {
	return map[string]string{
		"TITLE":    q.Title,
		"OPTIONS":  strings.Join(q.Options, listSep),
		"LINK":     QuizLink(baseURL, q.Slug),
		"DEADLINE": q.Deadline.UTC().Format(DeadlineLayout),
	}
}

// ResultValues fills the RESULT vocabulary from a quiz's responses and its winner, if any.
func ResultValues(q *models.Quiz, responses []models.Response, winner *models.Winner) map[string]string {
	var correctNames, wrongNames, correctPhones, wrongPhones []string
	for _, r := range responses {
		if r.IsCorrect {
			correctNames = append(correctNames, r.Name)
			correctPhones = append(correctPhones, r.Phone)
		} else {
			wrongNames = append(wrongNames, r.Name)
			wrongPhones = append(wrongPhones, r.Phone)
		}
	}
	v := map[string]string{
		"TITLE":           q.Title,
		"OPTIONS":         strings.Join(q.Options, listSep),
		"TOTAL_RESPONSES": strconv.Itoa(len(responses)),
		"CORRECT_COUNT":   strconv.Itoa(len(correctNames)),
		"WRONG_COUNT":     strconv.Itoa(len(wrongNames)),
		"CORRECT_NAMES":   strings.Join(correctNames, listSep),
		"WRONG_NAMES":     strings.Join(wrongNames, listSep),
		"CORRECT_PHONES":  strings.Join(correctPhones, listSep),
		"WRONG_PHONES":    strings.Join(wrongPhones, listSep),
		"WINNER_NAME":     "",
		"WINNER_PHONE":    "",
	}
	if winner != nil {
		v["WINNER_NAME"] = winner.Name
		v["WINNER_PHONE"] = winner.Phone
	}
	return v
}

// MonthlyValues fills the MONTHLY vocabulary. q is the quiz the monthly winner
// came from; winners are all quiz winners of the month.
func MonthlyValues(q *models.Quiz, month time.Month, year int, winners []models.Winner, monthly *models.MonthlyWinner) map[string]string {
	names := make([]string, 0, len(winners))
	phones := make([]string, 0, len(winners))
	for _, w := range winners {
		names = append(names, w.Name)
		phones = append(phones, w.Phone)
	}
	v := map[string]string{
		"MONTH":                month.String(),
		"YEAR":                 strconv.Itoa(year),
		"TOTAL_WINNERS":        strconv.Itoa(len(winners)),
		"WINNER_NAMES":         strings.Join(names, listSep),
		"WINNER_PHONES":        strings.Join(phones, listSep),
		"TITLE":                "",
		"OPTIONS":              "",
		"MONTHLY_WINNER_NAME":  "",
		"MONTHLY_WINNER_PHONE": "",
	}
	if q != nil {
		v["TITLE"] = q.Title
		v["OPTIONS"] = strings.Join(q.Options, listSep)
	}
	if monthly != nil {
		v["MONTHLY_WINNER_NAME"] = monthly.Name
		v["MONTHLY_WINNER_PHONE"] = monthly.Phone
	}
	return v
}
