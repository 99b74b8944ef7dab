package session

import (
	"fmt"
	"math"

	"github.com/hirevet/hirevet/pkg/models"
)

// Score counts the positions where the submitted answer matches the assigned
// question's correct index. Missing or out-of-range answers count as wrong, so
// a short answer slice never panics.
func Score(questions []models.Question, answers []int) int {
	score := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == q.Correct {
			score++
		}
	}
	return score
}

// Percentage returns the rounded percent of correct answers.
func Percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// LetterToIndex converts an answer letter A-D (either case) to its zero-based
// option index.
func LetterToIndex(letter string) (int, error) {
	if len(letter) != 1 {
		return 0, fmt.Errorf("invalid answer letter %q", letter)
	}
	ch := letter[0]
	switch {
	case ch >= 'A' && ch <= 'D':
		return int(ch - 'A'), nil
	case ch >= 'a' && ch <= 'd':
		return int(ch - 'a'), nil
	}
	return 0, fmt.Errorf("invalid answer letter %q", letter)
}

// IndexToLetter converts a zero-based option index back to its letter.
func IndexToLetter(index int) (string, error) {
	if index < 0 || index > 3 {
		return "", fmt.Errorf("answer index %d out of range", index)
	}
	return string(rune('A' + index)), nil
}
