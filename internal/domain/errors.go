package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a game session id is unknown.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrQuestionNotFound indicates a referenced question id is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCourseNotFound indicates the course could not be loaded.
	ErrCourseNotFound = errors.New("course not found")
	// ErrNotOwner is returned when a caller acts on a session they do not own.
	ErrNotOwner = errors.New("game session owned by another user")
	// ErrSessionFinished is returned when a finished session is mutated again.
	ErrSessionFinished = errors.New("game session is already finished")
	// ErrAlreadyAnswered is returned for a second guess on the same question.
	ErrAlreadyAnswered = errors.New("question is already answered")
	// ErrSessionIncomplete is returned when finishing before every required
	// question has a guess.
	ErrSessionIncomplete = errors.New("game session is not completed")
	// ErrMalformedAnswer indicates an answer payload whose shape does not
	// match the question type. This is a client/protocol bug, not a wrong answer.
	ErrMalformedAnswer = errors.New("answer data does not match question type")
)
