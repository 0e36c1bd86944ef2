package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawAnswer is the wire/storage form of an answer payload. It is kept opaque
// until a consumer decodes it against the owning question's type.
type RawAnswer = json.RawMessage

// AnswerData is the tagged union over the five answer payload shapes. Every
// consumer dispatches on the concrete type; probing raw payload fields is a
// protocol violation.
type AnswerData interface {
	answerType() QuestionType
}

// MultipleChoiceAnswer selects exactly one option.
type MultipleChoiceAnswer struct {
	OptionID string `json:"optionId"`
}

// SentenceSelectAnswer is shape-identical to MultipleChoiceAnswer; the
// selection is embedded inline in the sentence on the client.
type SentenceSelectAnswer struct {
	OptionID string `json:"optionId"`
}

// MatrixAnswer selects a set of grid cells.
type MatrixAnswer struct {
	OptionIDs []string `json:"optionIds"`
}

// SentenceFillAnswer carries free text typed into the placeholder.
type SentenceFillAnswer struct {
	Content string `json:"content"`
}

// ImageDragAndDropAnswer maps drop targets to the draggables placed on them.
// An option acts as both its own drop target and its own draggable, so an
// entry is correct iff key equals value. The submitted counts are advisory;
// scoring recomputes them from the map.
type ImageDragAndDropAnswer struct {
	DragMap         map[string]string `json:"dragMap"`
	AmountCorrect   int               `json:"amountCorrect"`
	AmountIncorrect int               `json:"amountIncorrect"`
}

func (MultipleChoiceAnswer) answerType() QuestionType   { return MultipleChoice }
func (SentenceSelectAnswer) answerType() QuestionType   { return SentenceSelect }
func (MatrixAnswer) answerType() QuestionType           { return Matrix }
func (SentenceFillAnswer) answerType() QuestionType     { return SentenceFill }
func (ImageDragAndDropAnswer) answerType() QuestionType { return ImageDragAndDrop }

// DecodeAnswer parses raw into the payload shape dictated by t. A payload
// whose fields do not match the question type fails with ErrMalformedAnswer;
// it never degrades into a silent incorrect answer.
func DecodeAnswer(t QuestionType, raw RawAnswer) (AnswerData, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedAnswer)
	}

	switch t {
	case MultipleChoice, SentenceSelect:
		var payload struct {
			OptionID *string `json:"optionId"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if payload.OptionID == nil || *payload.OptionID == "" {
			return nil, fmt.Errorf("%w: optionId is required for %s", ErrMalformedAnswer, t)
		}
		if t == SentenceSelect {
			return SentenceSelectAnswer{OptionID: *payload.OptionID}, nil
		}
		return MultipleChoiceAnswer{OptionID: *payload.OptionID}, nil

	case Matrix:
		var payload struct {
			OptionIDs *[]string `json:"optionIds"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if payload.OptionIDs == nil {
			return nil, fmt.Errorf("%w: optionIds is required for %s", ErrMalformedAnswer, t)
		}
		return MatrixAnswer{OptionIDs: *payload.OptionIDs}, nil

	case SentenceFill:
		var payload struct {
			Content *string `json:"content"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if payload.Content == nil {
			return nil, fmt.Errorf("%w: content is required for %s", ErrMalformedAnswer, t)
		}
		return SentenceFillAnswer{Content: *payload.Content}, nil

	case ImageDragAndDrop:
		var payload struct {
			DragMap         *map[string]string `json:"dragMap"`
			AmountCorrect   int                `json:"amountCorrect"`
			AmountIncorrect int                `json:"amountIncorrect"`
		}
		if err := strictUnmarshal(raw, &payload); err != nil {
			return nil, err
		}
		if payload.DragMap == nil {
			return nil, fmt.Errorf("%w: dragMap is required for %s", ErrMalformedAnswer, t)
		}
		return ImageDragAndDropAnswer{
			DragMap:         *payload.DragMap,
			AmountCorrect:   payload.AmountCorrect,
			AmountIncorrect: payload.AmountIncorrect,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown question type %q", ErrMalformedAnswer, t)
}

func strictUnmarshal(raw RawAnswer, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	return nil
}

// Evaluate applies the correctness predicate of q's type to answer. The
// answer's concrete type must match q.Type; a mismatch is ErrMalformedAnswer.
func Evaluate(q Question, options []QuestionOption, answer AnswerData) (bool, error) {
	if answer == nil {
		return false, fmt.Errorf("%w: nil answer", ErrMalformedAnswer)
	}
	if answer.answerType() != q.Type {
		return false, fmt.Errorf("%w: got %s payload for %s question", ErrMalformedAnswer, answer.answerType(), q.Type)
	}

	switch a := answer.(type) {
	case MultipleChoiceAnswer:
		return optionIsCorrect(options, a.OptionID), nil
	case SentenceSelectAnswer:
		return optionIsCorrect(options, a.OptionID), nil
	case MatrixAnswer:
		// Exact set equality: same cardinality, no extra, no missing.
		correct := make(map[string]bool)
		for _, opt := range options {
			if opt.Correct {
				correct[opt.ID] = true
			}
		}
		submitted := make(map[string]bool)
		for _, id := range a.OptionIDs {
			submitted[id] = true
		}
		if len(submitted) != len(correct) {
			return false, nil
		}
		for id := range submitted {
			if !correct[id] {
				return false, nil
			}
		}
		return true, nil
	case SentenceFillAnswer:
		for _, opt := range options {
			if opt.Correct && textMatches(a.Content, opt.Content) {
				return true, nil
			}
		}
		return false, nil
	case ImageDragAndDropAnswer:
		_, incorrect := a.EvaluateDragMap()
		return incorrect == 0, nil
	}
	return false, fmt.Errorf("%w: unhandled answer type %T", ErrMalformedAnswer, answer)
}

// EvaluateRaw decodes raw against q.Type and evaluates it in one step.
func EvaluateRaw(q Question, options []QuestionOption, raw RawAnswer) (bool, error) {
	answer, err := DecodeAnswer(q.Type, raw)
	if err != nil {
		return false, err
	}
	return Evaluate(q, options, answer)
}

// EvaluateDragMap recomputes the per-entry tallies from the drag map. An
// entry is correct iff the draggable landed on its own drop target.
func (a ImageDragAndDropAnswer) EvaluateDragMap() (correct, incorrect int) {
	for droppableID, draggableID := range a.DragMap {
		if droppableID == draggableID {
			correct++
		} else {
			incorrect++
		}
	}
	return correct, incorrect
}

func optionIsCorrect(options []QuestionOption, optionID string) bool {
	for _, opt := range options {
		if opt.ID == optionID {
			return opt.Correct
		}
	}
	return false
}

func textMatches(submitted, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(expected))
}
