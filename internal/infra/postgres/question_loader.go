package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-trainer-service/internal/domain"
)

// QuestionLoader is the read side for question content, served straight from
// Postgres via pgx. It implements app.QuestionRepository and typically sits
// behind the redis cache.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	var course domain.Course
	err := l.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM courses WHERE id=$1`, id).
		Scan(&course.ID, &course.Name, &course.CreatedAt, &course.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}

func (l *QuestionLoader) QuestionsWithOptions(ctx context.Context, courseID, origin string) ([]domain.QuestionWithOptions, error) {
	query := `SELECT id, course_id, type, content, sub_content, origin, label,
		image_path, image_width, image_height, draggable_width, created_at, updated_at
		FROM questions WHERE course_id=$1`
	args := []interface{}{courseID}
	if origin != domain.OriginAll {
		query += ` AND origin=$2`
		args = append(args, origin)
	}
	query += ` ORDER BY created_at, id`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	return l.attachOptions(ctx, questions)
}

func (l *QuestionLoader) QuestionsByIDs(ctx context.Context, ids []string) ([]domain.QuestionWithOptions, error) {
	if len(ids) == 0 {
		return []domain.QuestionWithOptions{}, nil
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, course_id, type, content, sub_content, origin, label,
		image_path, image_width, image_height, draggable_width, created_at, updated_at
		FROM questions WHERE id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	return l.attachOptions(ctx, questions)
}

func (l *QuestionLoader) CountQuestions(ctx context.Context, courseID, origin string) (int, error) {
	query := `SELECT COUNT(*) FROM questions WHERE course_id=$1`
	args := []interface{}{courseID}
	if origin != domain.OriginAll {
		query += ` AND origin=$2`
		args = append(args, origin)
	}
	var count int
	if err := l.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (l *QuestionLoader) Origins(ctx context.Context, courseID string) ([]domain.OriginInfo, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT origin, COALESCE(MAX(label), '') FROM questions
		WHERE course_id=$1 GROUP BY origin ORDER BY origin`, courseID)
	if err != nil {
		return nil, fmt.Errorf("load origins: %w", err)
	}
	defer rows.Close()

	origins := []domain.OriginInfo{}
	for rows.Next() {
		var info domain.OriginInfo
		if err := rows.Scan(&info.Origin, &info.Label); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		origins = append(origins, info)
	}
	return origins, rows.Err()
}

func (l *QuestionLoader) OriginsByContent(ctx context.Context, contents []string) (map[string][]string, error) {
	result := make(map[string][]string, len(contents))
	if len(contents) == 0 {
		return result, nil
	}
	rows, err := l.pool.Query(ctx,
		`SELECT content, origin FROM questions
		WHERE content = ANY($1) GROUP BY content, origin ORDER BY origin`, contents)
	if err != nil {
		return nil, fmt.Errorf("load origins by content: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var content, origin string
		if err := rows.Scan(&content, &origin); err != nil {
			return nil, fmt.Errorf("scan origin by content: %w", err)
		}
		result[content] = append(result[content], origin)
	}
	return result, rows.Err()
}

func (l *QuestionLoader) attachOptions(ctx context.Context, questions []domain.QuestionWithOptions) ([]domain.QuestionWithOptions, error) {
	if len(questions) == 0 {
		return questions, nil
	}
	ids := make([]string, len(questions))
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		index[q.ID] = i
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, question_id, content, y_content, x_coordinate, y_coordinate,
		correct, created_at, updated_at
		FROM question_options WHERE question_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("load question options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opt domain.QuestionOption
		var yContent sql.NullString
		var xCoord, yCoord sql.NullInt32
		if err := rows.Scan(&opt.ID, &opt.QuestionID, &opt.Content, &yContent,
			&xCoord, &yCoord, &opt.Correct, &opt.CreatedAt, &opt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question option: %w", err)
		}
		opt.YContent = yContent.String
		opt.XCoordinate = int(xCoord.Int32)
		opt.YCoordinate = int(yCoord.Int32)
		if i, ok := index[opt.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, opt)
		}
	}
	return questions, rows.Err()
}

func scanQuestions(rows pgx.Rows) ([]domain.QuestionWithOptions, error) {
	defer rows.Close()
	questions := []domain.QuestionWithOptions{}
	for rows.Next() {
		var q domain.Question
		var subContent, label, imagePath sql.NullString
		var imageWidth, imageHeight, draggableWidth sql.NullInt32
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Type, &q.Content, &subContent,
			&q.Origin, &label, &imagePath, &imageWidth, &imageHeight, &draggableWidth,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.SubContent = subContent.String
		q.Label = label.String
		q.ImagePath = imagePath.String
		q.ImageWidth = int(imageWidth.Int32)
		q.ImageHeight = int(imageHeight.Int32)
		q.DraggableWidth = int(draggableWidth.Int32)
		questions = append(questions, domain.QuestionWithOptions{
			Question:   q,
			Options:    []domain.QuestionOption{},
			AllOrigins: []string{},
		})
	}
	return questions, rows.Err()
}
