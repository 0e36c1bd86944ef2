package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-trainer-service/internal/domain"
)

func multipleChoiceQuestion() (domain.Question, []domain.QuestionOption) {
	q := domain.Question{ID: "q1", Type: domain.MultipleChoice, Content: "Pick one"}
	opts := []domain.QuestionOption{
		{ID: "o1", QuestionID: "q1", Content: "wrong"},
		{ID: "o2", QuestionID: "q1", Content: "right", Correct: true},
	}
	return q, opts
}

func matrixQuestion() (domain.Question, []domain.QuestionOption) {
	q := domain.Question{ID: "m1", Type: domain.Matrix, Content: "Mark all"}
	opts := []domain.QuestionOption{
		{ID: "c1", QuestionID: "m1", Content: "a", YContent: "x", Correct: true},
		{ID: "c2", QuestionID: "m1", Content: "b", YContent: "x"},
		{ID: "c3", QuestionID: "m1", Content: "a", YContent: "y", Correct: true},
	}
	return q, opts
}

func TestDecodeAnswerRejectsMismatchedShapes(t *testing.T) {
	tests := []struct {
		name string
		qt   domain.QuestionType
		raw  string
	}{
		{"empty payload", domain.MultipleChoice, ``},
		{"sentence fill payload for multiple choice", domain.MultipleChoice, `{"content":"Paris"}`},
		{"option payload for sentence fill", domain.SentenceFill, `{"optionId":"o1"}`},
		{"missing optionIds for matrix", domain.Matrix, `{}`},
		{"single option for matrix", domain.Matrix, `{"optionId":"o1"}`},
		{"missing dragMap", domain.ImageDragAndDrop, `{"amountCorrect":1}`},
		{"empty optionId", domain.SentenceSelect, `{"optionId":""}`},
		{"unknown question type", domain.QuestionType("BOGUS"), `{"optionId":"o1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.DecodeAnswer(tt.qt, domain.RawAnswer(tt.raw))
			assert.ErrorIs(t, err, domain.ErrMalformedAnswer)
		})
	}
}

func TestDecodeAnswerAcceptsCanonicalShapes(t *testing.T) {
	answer, err := domain.DecodeAnswer(domain.Matrix, domain.RawAnswer(`{"optionIds":["c1","c3"]}`))
	require.NoError(t, err)
	require.IsType(t, domain.MatrixAnswer{}, answer)
	assert.Equal(t, []string{"c1", "c3"}, answer.(domain.MatrixAnswer).OptionIDs)

	answer, err = domain.DecodeAnswer(domain.ImageDragAndDrop, domain.RawAnswer(`{"dragMap":{"o1":"o1"},"amountCorrect":1,"amountIncorrect":0}`))
	require.NoError(t, err)
	require.IsType(t, domain.ImageDragAndDropAnswer{}, answer)
}

func TestEvaluateMultipleChoice(t *testing.T) {
	q, opts := multipleChoiceQuestion()

	correct, err := domain.EvaluateRaw(q, opts, domain.RawAnswer(`{"optionId":"o2"}`))
	require.NoError(t, err)
	assert.True(t, correct)

	correct, err = domain.EvaluateRaw(q, opts, domain.RawAnswer(`{"optionId":"o1"}`))
	require.NoError(t, err)
	assert.False(t, correct)

	// An unknown option is incorrect, not an error.
	correct, err = domain.EvaluateRaw(q, opts, domain.RawAnswer(`{"optionId":"nope"}`))
	require.NoError(t, err)
	assert.False(t, correct)
}

func TestEvaluateMatrixRequiresExactSet(t *testing.T) {
	q, opts := matrixQuestion()

	tests := []struct {
		name    string
		raw     string
		correct bool
	}{
		{"exact set", `{"optionIds":["c1","c3"]}`, true},
		{"order does not matter", `{"optionIds":["c3","c1"]}`, true},
		{"one missing", `{"optionIds":["c1"]}`, false},
		{"one extra", `{"optionIds":["c1","c3","c2"]}`, false},
		{"empty submission", `{"optionIds":[]}`, false},
		{"duplicates collapse", `{"optionIds":["c1","c1","c3"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, err := domain.EvaluateRaw(q, opts, domain.RawAnswer(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.correct, correct)
		})
	}
}

func TestEvaluateSentenceFillTrimsAndIgnoresCase(t *testing.T) {
	q := domain.Question{ID: "s1", Type: domain.SentenceFill, Content: "The capital is {{placeholder}}"}
	opts := []domain.QuestionOption{
		{ID: "o1", QuestionID: "s1", Content: "paris", Correct: true},
		{ID: "o2", QuestionID: "s1", Content: "London"},
	}

	correct, err := domain.EvaluateRaw(q, opts, domain.RawAnswer(`{"content":" Paris "}`))
	require.NoError(t, err)
	assert.True(t, correct)

	// Matching an incorrect option's text does not help.
	correct, err = domain.EvaluateRaw(q, opts, domain.RawAnswer(`{"content":"london"}`))
	require.NoError(t, err)
	assert.False(t, correct)
}

func TestEvaluateImageDragAndDrop(t *testing.T) {
	q := domain.Question{ID: "i1", Type: domain.ImageDragAndDrop, Content: "Place the parts"}

	correct, err := domain.EvaluateRaw(q, nil, domain.RawAnswer(`{"dragMap":{"opt1":"opt1","opt2":"opt2"}}`))
	require.NoError(t, err)
	assert.True(t, correct)

	correct, err = domain.EvaluateRaw(q, nil, domain.RawAnswer(`{"dragMap":{"opt1":"opt1","opt2":"opt3"}}`))
	require.NoError(t, err)
	assert.False(t, correct)
}

func TestEvaluateDragMapTallies(t *testing.T) {
	answer := domain.ImageDragAndDropAnswer{DragMap: map[string]string{"opt1": "opt1", "opt2": "opt3"}}
	correct, incorrect := answer.EvaluateDragMap()
	assert.Equal(t, 1, correct)
	assert.Equal(t, 1, incorrect)
}

func TestEvaluateRejectsWrongPayloadType(t *testing.T) {
	q, opts := multipleChoiceQuestion()
	_, err := domain.Evaluate(q, opts, domain.SentenceFillAnswer{Content: "4"})
	assert.ErrorIs(t, err, domain.ErrMalformedAnswer)
}
