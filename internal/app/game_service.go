package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quiz-trainer-service/internal/domain"
)

// OriginAll disables origin filtering when passed as an origin.
const OriginAll = domain.OriginAll

// QuestionRepository reads question content persisted by the CRUD
// collaborator (from cache/backing store). The trainer never mutates it.
type QuestionRepository interface {
	// QuestionsWithOptions returns every question of a course (filtered by
	// origin unless origin is OriginAll) with its options attached, in
	// stored order.
	QuestionsWithOptions(ctx context.Context, courseID, origin string) ([]domain.QuestionWithOptions, error)
	// QuestionsByIDs returns the identified questions with options.
	QuestionsByIDs(ctx context.Context, ids []string) ([]domain.QuestionWithOptions, error)
	// CountQuestions counts the questions of a course/origin.
	CountQuestions(ctx context.Context, courseID, origin string) (int, error)
	// Origins lists the distinct origins of a course with their labels.
	Origins(ctx context.Context, courseID string) ([]domain.OriginInfo, error)
	// OriginsByContent maps each given content string to every origin a
	// question with exactly that content appears in, across all courses.
	OriginsByContent(ctx context.Context, contents []string) (map[string][]string, error)
	// GetCourse loads one course.
	GetCourse(ctx context.Context, id string) (domain.Course, error)
}

// GameRepository persists sessions and their append-only guess log.
type GameRepository interface {
	CreateSession(ctx context.Context, session *domain.GameSession) error
	// GetSession returns domain.ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, id string) (domain.GameSession, error)
	// InsertGuess appends a guess if no guess exists for the same
	// (session, question) pair. The check-and-insert must be atomic at the
	// storage layer, and the session's open state is re-checked in the same
	// atomic step (a finished session yields domain.ErrSessionFinished);
	// inserted reports whether the row was written.
	InsertGuess(ctx context.Context, guess *domain.Guess) (inserted bool, err error)
	// FinishSession sets finishedAt after verifying, within one transaction,
	// that the guess count satisfies the session's completion rule. Returns
	// domain.ErrSessionFinished or domain.ErrSessionIncomplete on violation.
	FinishSession(ctx context.Context, sessionID string, finishedAt time.Time) (domain.GameSession, error)
	GuessesForSession(ctx context.Context, sessionID string) ([]domain.Guess, error)
	// GuessesForUser returns, per question id, every guess the user ever
	// made on it across all of their sessions.
	GuessesForUser(ctx context.Context, userID string, questionIDs []string) (map[string][]domain.Guess, error)
	// FinishedSessionsForUser pages through the user's finished sessions,
	// newest first, and returns the total count.
	FinishedSessionsForUser(ctx context.Context, userID string, limit, offset int) ([]domain.GameSession, int, error)
}

// GameService implements the quiz lifecycle: start a session with a selected
// question set, record guesses, finish, and recompute results.
type GameService struct {
	games     GameRepository
	questions QuestionRepository
	now       func() time.Time
	newID     func() string
}

func NewGameService(games GameRepository, questions QuestionRepository) *GameService {
	return &GameService{
		games:     games,
		questions: questions,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewGameServiceWithClock is test-only for deterministic timestamps and ids.
func NewGameServiceWithClock(games GameRepository, questions QuestionRepository, now func() time.Time, newID func() string) *GameService {
	return &GameService{games: games, questions: questions, now: now, newID: newID}
}

// StartGame creates an open session and selects its question set in one step.
// A requested amount above the available count is clamped; the <= 0 sentinel
// ("all available") is stored as-is and resolved again at finish time.
func (s *GameService) StartGame(ctx context.Context, userID, courseID, origin string, amountQuestions int, order Order) (domain.GameSession, []domain.QuestionWithOptions, error) {
	if _, err := s.questions.GetCourse(ctx, courseID); err != nil {
		return domain.GameSession{}, nil, err
	}

	amount := amountQuestions
	if amount > 0 {
		available, err := s.questions.CountQuestions(ctx, courseID, origin)
		if err != nil {
			return domain.GameSession{}, nil, fmt.Errorf("count questions: %w", err)
		}
		if amount > available {
			amount = available
		}
	}

	questions, err := s.SelectQuestions(ctx, SelectionRequest{
		CourseID: courseID,
		Origin:   origin,
		Amount:   amount,
		Order:    order,
		UserID:   userID,
	})
	if err != nil {
		return domain.GameSession{}, nil, err
	}

	now := s.now()
	session := domain.GameSession{
		ID:              s.newID(),
		UserID:          userID,
		CourseID:        courseID,
		Origin:          origin,
		AmountQuestions: amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.games.CreateSession(ctx, &session); err != nil {
		return domain.GameSession{}, nil, fmt.Errorf("create session: %w", err)
	}
	return session, questions, nil
}

// AddGuess validates and appends one guess. The (session, question)
// uniqueness constraint in the store is the idempotence mechanism: a client
// retry after a dropped response gets domain.ErrAlreadyAnswered instead of a
// duplicate row.
func (s *GameService) AddGuess(ctx context.Context, userID, sessionID, questionID string, answer domain.RawAnswer) (domain.Guess, error) {
	session, err := s.games.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Guess{}, err
	}
	if session.UserID != userID {
		return domain.Guess{}, domain.ErrNotOwner
	}
	if session.Finished() {
		return domain.Guess{}, domain.ErrSessionFinished
	}

	questions, err := s.questions.QuestionsByIDs(ctx, []string{questionID})
	if err != nil {
		return domain.Guess{}, fmt.Errorf("load question: %w", err)
	}
	if len(questions) == 0 {
		return domain.Guess{}, domain.ErrQuestionNotFound
	}

	// Reject mismatched payload shapes before anything hits the log.
	if _, err := domain.DecodeAnswer(questions[0].Type, answer); err != nil {
		return domain.Guess{}, err
	}

	guess := domain.Guess{
		ID:            s.newID(),
		GameSessionID: sessionID,
		QuestionID:    questionID,
		AnswerData:    answer,
		CreatedAt:     s.now(),
	}
	inserted, err := s.games.InsertGuess(ctx, &guess)
	if err != nil {
		return domain.Guess{}, fmt.Errorf("insert guess: %w", err)
	}
	if !inserted {
		return domain.Guess{}, domain.ErrAlreadyAnswered
	}
	return guess, nil
}

// Finish moves the session to its terminal state. The guess count (and for
// the "all available" sentinel the question count it is compared against) is
// re-read inside the store transaction, so a racing AddGuess cannot leave
// Finish judging a stale count.
func (s *GameService) Finish(ctx context.Context, userID, sessionID string) (domain.GameSession, error) {
	session, err := s.games.GetSession(ctx, sessionID)
	if err != nil {
		return domain.GameSession{}, err
	}
	if session.UserID != userID {
		return domain.GameSession{}, domain.ErrNotOwner
	}
	return s.games.FinishSession(ctx, sessionID, s.now())
}

// Results re-evaluates every guess of the session against the answer model
// and returns the transcript plus the derived summary. Recomputation is the
// source of truth; no running total is ever stored.
func (s *GameService) Results(ctx context.Context, userID, sessionID string) (domain.GameResults, error) {
	session, err := s.games.GetSession(ctx, sessionID)
	if err != nil {
		return domain.GameResults{}, err
	}
	if session.UserID != userID {
		return domain.GameResults{}, domain.ErrNotOwner
	}

	course, err := s.questions.GetCourse(ctx, session.CourseID)
	if err != nil {
		return domain.GameResults{}, err
	}

	guesses, err := s.games.GuessesForSession(ctx, sessionID)
	if err != nil {
		return domain.GameResults{}, fmt.Errorf("load guesses: %w", err)
	}

	questionIDs := make([]string, 0, len(guesses))
	for _, g := range guesses {
		questionIDs = append(questionIDs, g.QuestionID)
	}
	questions, err := s.questions.QuestionsByIDs(ctx, questionIDs)
	if err != nil {
		return domain.GameResults{}, fmt.Errorf("load questions: %w", err)
	}
	byID := make(map[string]domain.QuestionWithOptions, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	results := domain.GameResults{
		GameSession: session,
		Course:      course,
		Guesses:     guesses,
		Questions:   questions,
	}
	for _, g := range guesses {
		q, ok := byID[g.QuestionID]
		if !ok {
			// Question deleted since the session ran; its guess cannot be
			// re-evaluated in the learner's favor.
			results.AmountIncorrect++
			continue
		}
		correct, err := domain.EvaluateRaw(q.Question, q.Options, g.AnswerData)
		if err != nil || !correct {
			results.AmountIncorrect++
			continue
		}
		results.AmountCorrect++
	}
	return results, nil
}

// History pages through the user's finished sessions, newest first.
func (s *GameService) History(ctx context.Context, userID string, limit, offset int) ([]domain.GameSession, int, error) {
	if limit <= 0 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}
	return s.games.FinishedSessionsForUser(ctx, userID, limit, offset)
}

// Origins lists the selectable origins of a course.
func (s *GameService) Origins(ctx context.Context, courseID string) ([]domain.OriginInfo, error) {
	if _, err := s.questions.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return s.questions.Origins(ctx, courseID)
}
