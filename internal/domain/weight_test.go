package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quiz-trainer-service/internal/domain"
)

func guess(raw string) domain.Guess {
	return domain.Guess{AnswerData: domain.RawAnswer(raw)}
}

func TestWeightNeverAttemptedIsZero(t *testing.T) {
	q, opts := multipleChoiceQuestion()
	assert.Equal(t, 0, domain.Weight(q, opts, nil))
}

func TestScoreGuessMultipleChoice(t *testing.T) {
	q, opts := multipleChoiceQuestion()

	assert.Equal(t, 1, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"optionId":"o2"}`)))
	assert.Equal(t, -1, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"optionId":"o1"}`)))
	// Unknown options and undecodable payloads stay neutral.
	assert.Equal(t, 0, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"optionId":"gone"}`)))
	assert.Equal(t, 0, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"content":"4"}`)))
}

func TestScoreGuessMatrixSumsPerOption(t *testing.T) {
	q, opts := matrixQuestion()

	tests := []struct {
		name  string
		raw   string
		score int
	}{
		{"both correct cells", `{"optionIds":["c1","c3"]}`, 2},
		{"one correct one wrong", `{"optionIds":["c1","c2"]}`, 0},
		{"only wrong cell", `{"optionIds":["c2"]}`, -1},
		{"nothing selected", `{"optionIds":[]}`, 0},
		{"partial correct", `{"optionIds":["c1"]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.score, domain.ScoreGuess(q, opts, domain.RawAnswer(tt.raw)))
		})
	}
}

func TestScoreGuessSentenceFillHasNoPenalty(t *testing.T) {
	q := domain.Question{ID: "s1", Type: domain.SentenceFill}
	opts := []domain.QuestionOption{{ID: "o1", Content: "paris", Correct: true}}

	assert.Equal(t, 1, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"content":" Paris "}`)))
	assert.Equal(t, 0, domain.ScoreGuess(q, opts, domain.RawAnswer(`{"content":"Lyon"}`)))
}

func TestScoreGuessImageDragAndDrop(t *testing.T) {
	q := domain.Question{ID: "i1", Type: domain.ImageDragAndDrop}

	assert.Equal(t, 1, domain.ScoreGuess(q, nil, domain.RawAnswer(`{"dragMap":{"a":"a","b":"b"}}`)))
	assert.Equal(t, -1, domain.ScoreGuess(q, nil, domain.RawAnswer(`{"dragMap":{"a":"a","b":"c"}}`)))
}

func TestWeightFoldsWholeHistory(t *testing.T) {
	q, opts := multipleChoiceQuestion()
	history := []domain.Guess{
		guess(`{"optionId":"o1"}`), // -1
		guess(`{"optionId":"o1"}`), // -1
		guess(`{"optionId":"o2"}`), // +1
	}
	assert.Equal(t, -1, domain.Weight(q, opts, history))
}

func TestBucketWeight(t *testing.T) {
	tests := []struct {
		weight int
		rung   int
		dots   int
	}{
		{-10, -2, 1},
		{-2, -2, 1},
		{-1, -1, 2},
		{0, 0, 3},
		{1, 2, 4},  // equidistant between 0 and 2, resolves up
		{2, 2, 4},
		{3, 4, 5},  // equidistant between 2 and 4, resolves up
		{4, 4, 5},
		{100, 4, 5},
	}
	for _, tt := range tests {
		bucket := domain.BucketWeight(tt.weight)
		assert.Equal(t, tt.rung, bucket.Rung, "weight %d", tt.weight)
		assert.Equal(t, tt.dots, bucket.Dots, "weight %d", tt.weight)
		assert.NotEmpty(t, bucket.Severity)
	}
}
