package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-trainer-service/internal/domain"
)

// Store is an in-memory implementation of the app repositories, used by
// tests and by the no-database demo mode. The mutex gives the same atomicity
// the SQL store gets from its constraints and transactions.
type Store struct {
	mu            sync.RWMutex
	courses       map[string]domain.Course
	questionOrder []string
	questions     map[string]domain.Question
	options       map[string][]domain.QuestionOption
	sessions      map[string]domain.GameSession
	guessKeys     map[guessKey]bool
	guesses       []domain.Guess
}

type guessKey struct {
	sessionID  string
	questionID string
}

func NewStore() *Store {
	return &Store{
		courses:   make(map[string]domain.Course),
		questions: make(map[string]domain.Question),
		options:   make(map[string][]domain.QuestionOption),
		sessions:  make(map[string]domain.GameSession),
		guessKeys: make(map[guessKey]bool),
	}
}

// AddCourse seeds a course.
func (s *Store) AddCourse(course domain.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[course.ID] = course
}

// AddQuestion seeds a question with its options, preserving insertion order
// as the stored order.
func (s *Store) AddQuestion(q domain.Question, options ...domain.QuestionOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		s.questionOrder = append(s.questionOrder, q.ID)
	}
	s.questions[q.ID] = q
	s.options[q.ID] = append([]domain.QuestionOption(nil), options...)
}

func (s *Store) GetCourse(_ context.Context, id string) (domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[id]
	if !ok {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return course, nil
}

func (s *Store) QuestionsWithOptions(_ context.Context, courseID, origin string) ([]domain.QuestionWithOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.QuestionWithOptions{}
	for _, id := range s.questionOrder {
		q := s.questions[id]
		if q.CourseID != courseID {
			continue
		}
		if origin != domain.OriginAll && q.Origin != origin {
			continue
		}
		result = append(result, s.withOptionsLocked(q))
	}
	return result, nil
}

func (s *Store) QuestionsByIDs(_ context.Context, ids []string) ([]domain.QuestionWithOptions, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.QuestionWithOptions{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		q, ok := s.questions[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, s.withOptionsLocked(q))
	}
	return result, nil
}

func (s *Store) CountQuestions(_ context.Context, courseID, origin string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, q := range s.questions {
		if q.CourseID == courseID && (origin == domain.OriginAll || q.Origin == origin) {
			count++
		}
	}
	return count, nil
}

func (s *Store) Origins(_ context.Context, courseID string) ([]domain.OriginInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	labels := make(map[string]string)
	for _, q := range s.questions {
		if q.CourseID != courseID {
			continue
		}
		if _, ok := labels[q.Origin]; !ok || labels[q.Origin] == "" {
			labels[q.Origin] = q.Label
		}
	}
	origins := make([]domain.OriginInfo, 0, len(labels))
	for origin, label := range labels {
		origins = append(origins, domain.OriginInfo{Origin: origin, Label: label})
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i].Origin < origins[j].Origin })
	return origins, nil
}

func (s *Store) OriginsByContent(_ context.Context, contents []string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(contents))
	for _, c := range contents {
		wanted[c] = true
	}
	result := make(map[string][]string, len(contents))
	for _, q := range s.questions {
		if !wanted[q.Content] {
			continue
		}
		if !containsString(result[q.Content], q.Origin) {
			result[q.Content] = append(result[q.Content], q.Origin)
		}
	}
	for content := range result {
		sort.Strings(result[content])
	}
	return result, nil
}

func (s *Store) CreateSession(_ context.Context, session *domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) InsertGuess(_ context.Context, guess *domain.Guess) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[guess.GameSessionID]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if session.FinishedAt != nil {
		return false, domain.ErrSessionFinished
	}
	key := guessKey{sessionID: guess.GameSessionID, questionID: guess.QuestionID}
	if s.guessKeys[key] {
		return false, nil
	}
	s.guessKeys[key] = true
	s.guesses = append(s.guesses, *guess)
	return true, nil
}

func (s *Store) FinishSession(_ context.Context, sessionID string, finishedAt time.Time) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	if session.FinishedAt != nil {
		return domain.GameSession{}, domain.ErrSessionFinished
	}

	guessCount := 0
	for _, g := range s.guesses {
		if g.GameSessionID == sessionID {
			guessCount++
		}
	}
	required := session.AmountQuestions
	if required <= 0 {
		required = 0
		for _, q := range s.questions {
			if q.CourseID == session.CourseID && (session.Origin == domain.OriginAll || q.Origin == session.Origin) {
				required++
			}
		}
	}
	if guessCount != required {
		return domain.GameSession{}, domain.ErrSessionIncomplete
	}

	session.FinishedAt = &finishedAt
	session.UpdatedAt = finishedAt
	s.sessions[sessionID] = session
	return session, nil
}

func (s *Store) GuessesForSession(_ context.Context, sessionID string) ([]domain.Guess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.Guess{}
	for _, g := range s.guesses {
		if g.GameSessionID == sessionID {
			result = append(result, g)
		}
	}
	return result, nil
}

func (s *Store) GuessesForUser(_ context.Context, userID string, questionIDs []string) (map[string][]domain.Guess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	result := make(map[string][]domain.Guess)
	for _, g := range s.guesses {
		if !wanted[g.QuestionID] {
			continue
		}
		session, ok := s.sessions[g.GameSessionID]
		if !ok || session.UserID != userID {
			continue
		}
		result[g.QuestionID] = append(result[g.QuestionID], g)
	}
	return result, nil
}

func (s *Store) FinishedSessionsForUser(_ context.Context, userID string, limit, offset int) ([]domain.GameSession, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	finished := []domain.GameSession{}
	for _, session := range s.sessions {
		if session.UserID == userID && session.FinishedAt != nil {
			finished = append(finished, session)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].CreatedAt.After(finished[j].CreatedAt) })
	total := len(finished)
	if offset >= total {
		return []domain.GameSession{}, total, nil
	}
	finished = finished[offset:]
	if limit > 0 && limit < len(finished) {
		finished = finished[:limit]
	}
	return finished, total, nil
}

func (s *Store) withOptionsLocked(q domain.Question) domain.QuestionWithOptions {
	return domain.QuestionWithOptions{
		Question:   q,
		Options:    append([]domain.QuestionOption(nil), s.options[q.ID]...),
		AllOrigins: []string{},
	}
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
