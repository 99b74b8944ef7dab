package session

import (
	"math/rand"

	"github.com/hirevet/hirevet/pkg/models"
)

// Sample returns k questions drawn without repetition from the pool. When the
// pool holds fewer than k questions the whole pool is returned in shuffled
// order. The input slice is not modified.
func Sample(pool []models.Question, k int) []models.Question {
	shuffled := make([]models.Question, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if k > len(shuffled) {
		k = len(shuffled)
	}
	return shuffled[:k]
}
