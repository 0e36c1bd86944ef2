package domain

import "time"

// QuestionType discriminates the five supported question variants. The type
// determines both the expected AnswerData payload shape and the correctness
// predicate applied to it.
type QuestionType string

const (
	MultipleChoice   QuestionType = "MULTIPLE_CHOICE"
	SentenceSelect   QuestionType = "SENTENCE_SELECT"
	Matrix           QuestionType = "MATRIX"
	SentenceFill     QuestionType = "SENTENCE_FILL"
	ImageDragAndDrop QuestionType = "IMAGE_DRAG_AND_DROP"
)

// OriginAll is the origin filter sentinel meaning "every origin".
const OriginAll = "all"

// KnownQuestionType reports whether t is one of the five supported variants.
func KnownQuestionType(t QuestionType) bool {
	switch t {
	case MultipleChoice, SentenceSelect, Matrix, SentenceFill, ImageDragAndDrop:
		return true
	}
	return false
}

// Course groups questions. The trainer only reads courses; CRUD lives in the
// admin collaborator.
type Course struct {
	ID        string    `json:"id" bun:"id,pk"`
	Name      string    `json:"name" bun:"name"`
	CreatedAt time.Time `json:"createdAt" bun:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at"`
}

// Question is one quiz question sourced from an exam ("origin"). Content may
// embed a single {{placeholder}} token; SubContent is used only by the two
// sentence-based types and must carry exactly one placeholder when present.
// The image fields are set together and only for IMAGE_DRAG_AND_DROP.
type Question struct {
	ID             string       `json:"id" bun:"id,pk"`
	CourseID       string       `json:"courseId" bun:"course_id"`
	Type           QuestionType `json:"type" bun:"type"`
	Content        string       `json:"content" bun:"content"`
	SubContent     string       `json:"subContent,omitempty" bun:"sub_content,nullzero"`
	Origin         string       `json:"origin" bun:"origin"`
	Label          string       `json:"label,omitempty" bun:"label,nullzero"`
	ImagePath      string       `json:"imagePath,omitempty" bun:"image_path,nullzero"`
	ImageWidth     int          `json:"imageWidth,omitempty" bun:"image_width,nullzero"`
	ImageHeight    int          `json:"imageHeight,omitempty" bun:"image_height,nullzero"`
	DraggableWidth int          `json:"draggableWidth,omitempty" bun:"draggable_width,nullzero"`
	CreatedAt      time.Time    `json:"createdAt" bun:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" bun:"updated_at"`
}

// QuestionOption is one answer option of a question. YContent pairs with
// Content to address a matrix cell; the coordinates place drop targets on the
// question image.
type QuestionOption struct {
	ID          string    `json:"id" bun:"id,pk"`
	QuestionID  string    `json:"questionId" bun:"question_id"`
	Content     string    `json:"content" bun:"content"`
	YContent    string    `json:"yContent,omitempty" bun:"y_content,nullzero"`
	XCoordinate int       `json:"xCoordinate,omitempty" bun:"x_coordinate,nullzero"`
	YCoordinate int       `json:"yCoordinate,omitempty" bun:"y_coordinate,nullzero"`
	Correct     bool      `json:"correct" bun:"correct"`
	CreatedAt   time.Time `json:"createdAt" bun:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bun:"updated_at"`
}

// QuestionWithOptions is the selector's unit of work: a question, its options,
// the requesting user's derived weight, and every origin the same content
// appears in. Weight and AllOrigins are recomputed per read, never stored.
type QuestionWithOptions struct {
	Question
	Options    []QuestionOption `json:"options"`
	Weight     int              `json:"weight"`
	AllOrigins []string         `json:"allOrigins"`
}

// OriginInfo is one selectable origin of a course with its display label.
type OriginInfo struct {
	Origin string `json:"origin"`
	Label  string `json:"label,omitempty"`
}

// GameSession is one quiz attempt by one user. AmountQuestions <= 0 is the
// "all available" sentinel. The only mutation a session ever sees is the
// finish transition setting FinishedAt.
type GameSession struct {
	ID              string     `json:"id" bun:"id,pk"`
	UserID          string     `json:"userId" bun:"user_id"`
	CourseID        string     `json:"courseId" bun:"course_id"`
	Origin          string     `json:"origin" bun:"origin"`
	AmountQuestions int        `json:"amountQuestions" bun:"amount_questions"`
	FinishedAt      *time.Time `json:"finishedAt" bun:"finished_at"`
	CreatedAt       time.Time  `json:"createdAt" bun:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" bun:"updated_at"`
}

// Finished reports whether the session reached its terminal state.
func (s GameSession) Finished() bool {
	return s.FinishedAt != nil
}

// Guess is one submitted answer. Guesses are append-only and unique per
// (GameSessionID, QuestionID); AnswerData holds the raw payload whose shape
// is dictated by the referenced question's type.
type Guess struct {
	ID            string    `json:"id" bun:"id,pk"`
	GameSessionID string    `json:"gameSessionId" bun:"game_session_id"`
	QuestionID    string    `json:"questionId" bun:"question_id"`
	AnswerData    RawAnswer `json:"answerData" bun:"answer_data,type:jsonb"`
	CreatedAt     time.Time `json:"createdAt" bun:"created_at"`
}

// GameResults is the recomputed transcript of a session: the guesses, the
// questions they reference, and the summary derived by re-evaluating every
// guess against the answer model. The summary is never read from storage.
type GameResults struct {
	GameSession
	Course          Course                `json:"course"`
	Guesses         []Guess               `json:"guesses"`
	Questions       []QuestionWithOptions `json:"questions"`
	AmountCorrect   int                   `json:"amountCorrect"`
	AmountIncorrect int                   `json:"amountIncorrect"`
}
