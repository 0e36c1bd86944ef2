package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"quiz-trainer-service/internal/domain"
)

// Order controls how selected questions are sequenced.
type Order string

const (
	// OrderOriginal keeps the stored order untouched.
	OrderOriginal Order = "original"
	// OrderRandom shuffles uniformly, freshly drawn per request.
	OrderRandom Order = "random"
	// OrderWorst puts the questions the learner struggles with most first
	// (lowest weight), randomizing within equal weight.
	OrderWorst Order = "worst"
)

// ParseOrder normalizes a client-supplied ordering mode. An empty string
// defaults to random, matching the historical quiz start behavior.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "":
		return OrderRandom, nil
	case OrderOriginal, OrderRandom, OrderWorst:
		return Order(s), nil
	}
	return "", fmt.Errorf("unknown order %q", s)
}

// SelectionRequest describes one question selection.
type SelectionRequest struct {
	CourseID string
	Origin   string // OriginAll disables the origin filter
	Amount   int    // <= 0 means all available
	Order    Order
	UserID   string // required for OrderWorst and for weight enrichment
}

// SelectQuestions returns min(amount, available) questions with options,
// annotated with the requesting user's weight and with every origin the same
// content appears in. No matching questions is an empty result, not an error.
// OrderWorst needs a guess history to sort by, so it requires a user id.
func (s *GameService) SelectQuestions(ctx context.Context, req SelectionRequest) ([]domain.QuestionWithOptions, error) {
	if req.Order == OrderWorst && req.UserID == "" {
		return nil, fmt.Errorf("order %q requires a user id", OrderWorst)
	}
	questions, err := s.questions.QuestionsWithOptions(ctx, req.CourseID, req.Origin)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return []domain.QuestionWithOptions{}, nil
	}

	if err := s.enrichAllOrigins(ctx, questions); err != nil {
		return nil, err
	}
	if req.UserID != "" {
		if err := s.enrichWeights(ctx, req.UserID, questions); err != nil {
			return nil, err
		}
	}

	switch req.Order {
	case OrderRandom:
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	case OrderWorst:
		// Shuffle first so equal weights end up in random relative order.
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
		sort.SliceStable(questions, func(i, j int) bool {
			return questions[i].Weight < questions[j].Weight
		})
	}

	if req.Amount > 0 && req.Amount < len(questions) {
		questions = questions[:req.Amount]
	}
	return questions, nil
}

// enrichAllOrigins groups questions across origins by exact content match so
// the learner can see "this exact question also appeared in exams X, Y".
func (s *GameService) enrichAllOrigins(ctx context.Context, questions []domain.QuestionWithOptions) error {
	contents := make([]string, 0, len(questions))
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if !seen[q.Content] {
			seen[q.Content] = true
			contents = append(contents, q.Content)
		}
	}

	byContent, err := s.questions.OriginsByContent(ctx, contents)
	if err != nil {
		return fmt.Errorf("load origins by content: %w", err)
	}
	for i := range questions {
		origins := byContent[questions[i].Content]
		if origins == nil {
			origins = []string{}
		}
		questions[i].AllOrigins = origins
	}
	return nil
}

// enrichWeights folds the user's guess history into a weight per question.
func (s *GameService) enrichWeights(ctx context.Context, userID string, questions []domain.QuestionWithOptions) error {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	guesses, err := s.games.GuessesForUser(ctx, userID, ids)
	if err != nil {
		return fmt.Errorf("load guess history: %w", err)
	}
	for i := range questions {
		questions[i].Weight = domain.Weight(questions[i].Question, questions[i].Options, guesses[questions[i].ID])
	}
	return nil
}
