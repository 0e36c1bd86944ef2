package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-trainer-service/internal/config"
	"quiz-trainer-service/internal/domain"
)

// seedFile is the JSON layout the seed command consumes. Options ride inside
// their question; ids are generated when omitted.
type seedFile struct {
	Courses   []domain.Course `json:"courses"`
	Questions []seedQuestion  `json:"questions"`
}

type seedQuestion struct {
	domain.Question
	Options []domain.QuestionOption `json:"options"`
}

// NewSeedCmd loads courses, questions, and options from a JSON file.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quiz content from a JSON file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "seed.json", "path to the seed JSON file")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		for i := range seed.Courses {
			fillCourse(&seed.Courses[i], now)
			if _, err := tx.NewInsert().Model(&seed.Courses[i]).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name, updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("insert course: %w", err)
			}
		}

		inserted := 0
		for i := range seed.Questions {
			q := &seed.Questions[i]
			if !domain.KnownQuestionType(q.Type) {
				return fmt.Errorf("question %q: unknown type %q", q.Content, q.Type)
			}
			fillQuestion(&q.Question, now)
			if _, err := tx.NewInsert().Model(&q.Question).Exec(ctx); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
			for j := range q.Options {
				opt := &q.Options[j]
				fillOption(opt, q.ID, now)
				if _, err := tx.NewInsert().Model(opt).Exec(ctx); err != nil {
					return fmt.Errorf("insert question option: %w", err)
				}
			}
			inserted++
		}
		log.Printf("seeded %d courses, %d questions", len(seed.Courses), inserted)
		return nil
	})
}

func fillCourse(c *domain.Course, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

func fillQuestion(q *domain.Question, now time.Time) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now
}

func fillOption(opt *domain.QuestionOption, questionID string, now time.Time) {
	if opt.ID == "" {
		opt.ID = uuid.NewString()
	}
	opt.QuestionID = questionID
	if opt.CreatedAt.IsZero() {
		opt.CreatedAt = now
	}
	opt.UpdatedAt = now
}
