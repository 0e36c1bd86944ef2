package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-trainer-service/internal/domain"
)

// Store implements app.GameRepository on Postgres via bun. Guess idempotence
// rides on the (game_session_id, question_id) unique constraint, and the
// finish transition re-reads its counts inside a single transaction.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session *domain.GameSession) error {
	if _, err := s.db.NewInsert().Model(session).Exec(ctx); err != nil {
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.GameSession, error) {
	var session domain.GameSession
	err := s.db.NewSelect().Model(&session).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.GameSession{}, fmt.Errorf("select game session: %w", err)
	}
	return session, nil
}

func (s *Store) InsertGuess(ctx context.Context, guess *domain.Guess) (bool, error) {
	var inserted bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Lock the session row so a concurrent finish cannot commit between
		// the open-state check and the insert.
		var session domain.GameSession
		err := tx.NewSelect().
			Model(&session).
			Where("id = ?", guess.GameSessionID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("select game session: %w", err)
		}
		if session.FinishedAt != nil {
			return domain.ErrSessionFinished
		}

		res, err := tx.NewInsert().
			Model(guess).
			On("CONFLICT (game_session_id, question_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert guess: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert guess result: %w", err)
		}
		inserted = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *Store) FinishSession(ctx context.Context, sessionID string, finishedAt time.Time) (domain.GameSession, error) {
	var session domain.GameSession
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&session).
			Where("id = ?", sessionID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("select game session: %w", err)
		}
		if session.FinishedAt != nil {
			return domain.ErrSessionFinished
		}

		guessCount, err := tx.NewSelect().
			Model((*domain.Guess)(nil)).
			Where("game_session_id = ?", sessionID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("count guesses: %w", err)
		}

		required := session.AmountQuestions
		if required <= 0 {
			q := tx.NewSelect().
				Model((*domain.Question)(nil)).
				Where("course_id = ?", session.CourseID)
			if session.Origin != domain.OriginAll {
				q = q.Where("origin = ?", session.Origin)
			}
			required, err = q.Count(ctx)
			if err != nil {
				return fmt.Errorf("count questions: %w", err)
			}
		}
		if guessCount != required {
			return domain.ErrSessionIncomplete
		}

		session.FinishedAt = &finishedAt
		session.UpdatedAt = finishedAt
		if _, err := tx.NewUpdate().
			Model(&session).
			Column("finished_at", "updated_at").
			Where("id = ?", sessionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("update game session: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.GameSession{}, err
	}
	return session, nil
}

func (s *Store) GuessesForSession(ctx context.Context, sessionID string) ([]domain.Guess, error) {
	guesses := []domain.Guess{}
	err := s.db.NewSelect().
		Model(&guesses).
		Where("game_session_id = ?", sessionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select guesses: %w", err)
	}
	return guesses, nil
}

func (s *Store) GuessesForUser(ctx context.Context, userID string, questionIDs []string) (map[string][]domain.Guess, error) {
	result := make(map[string][]domain.Guess, len(questionIDs))
	if len(questionIDs) == 0 {
		return result, nil
	}
	guesses := []domain.Guess{}
	err := s.db.NewSelect().
		Model(&guesses).
		Join("JOIN game_sessions AS gs ON gs.id = guess.game_session_id").
		Where("gs.user_id = ?", userID).
		Where("guess.question_id IN (?)", bun.In(questionIDs)).
		Order("guess.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select guess history: %w", err)
	}
	for _, g := range guesses {
		result[g.QuestionID] = append(result[g.QuestionID], g)
	}
	return result, nil
}

func (s *Store) FinishedSessionsForUser(ctx context.Context, userID string, limit, offset int) ([]domain.GameSession, int, error) {
	sessions := []domain.GameSession{}
	total, err := s.db.NewSelect().
		Model(&sessions).
		Where("user_id = ?", userID).
		Where("finished_at IS NOT NULL").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("select finished sessions: %w", err)
	}
	return sessions, total, nil
}
