package winners

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/qwinhub/backend/internal/models"
)

// ErrNoCandidates is returned when there is nobody to draw from.
var ErrNoCandidates = errors.New("no eligible candidates")

// Pick draws one of n candidates uniformly at random.
func Pick(n int) (int, error) {
	if n <= 0 {
		return 0, ErrNoCandidates
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(i.Int64()), nil
}

// PickCorrect draws a winner among the correct responses.
func PickCorrect(responses []models.Response) (*models.Response, error) {
	var correct []models.Response
	for _, r := range responses {
		if r.IsCorrect {
			correct = append(correct, r)
		}
	}
	i, err := Pick(len(correct))
	if err != nil {
		return nil, err
	}
	return &correct[i], nil
}
