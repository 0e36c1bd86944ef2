package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-trainer-service/internal/app"
	"quiz-trainer-service/internal/domain"
)

// QuestionCache is a read-through Redis cache in front of a question
// repository. Only question content is cached: weights and guesses are
// derived from the durable log on every read and must never live here.
//
// Keys:
//
//	questions:{courseID}:{origin}  JSON array of questions with options
//	course:{courseID}              JSON course
//	origins:{courseID}             JSON array of origin infos
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader app.QuestionRepository, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) QuestionsWithOptions(ctx context.Context, courseID, origin string) ([]domain.QuestionWithOptions, error) {
	key := "questions:" + courseID + ":" + origin
	questions := []domain.QuestionWithOptions{}
	if c.readCached(ctx, key, &questions) {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		cached := []domain.QuestionWithOptions{}
		// Re-check cache in case another goroutine filled it.
		if c.readCached(ctx, key, &cached) {
			return cached, nil
		}
		loaded, err := c.loader.QuestionsWithOptions(ctx, courseID, origin)
		if err != nil {
			return nil, err
		}
		c.writeCached(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuestionWithOptions), nil
}

func (c *QuestionCache) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	key := "course:" + id
	var course domain.Course
	if c.readCached(ctx, key, &course) {
		return course, nil
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var cached domain.Course
		if c.readCached(ctx, key, &cached) {
			return cached, nil
		}
		loaded, err := c.loader.GetCourse(ctx, id)
		if err != nil {
			return domain.Course{}, err
		}
		c.writeCached(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return result.(domain.Course), nil
}

func (c *QuestionCache) Origins(ctx context.Context, courseID string) ([]domain.OriginInfo, error) {
	key := "origins:" + courseID
	origins := []domain.OriginInfo{}
	if c.readCached(ctx, key, &origins) {
		return origins, nil
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		cached := []domain.OriginInfo{}
		if c.readCached(ctx, key, &cached) {
			return cached, nil
		}
		loaded, err := c.loader.Origins(ctx, courseID)
		if err != nil {
			return nil, err
		}
		c.writeCached(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.OriginInfo), nil
}

// QuestionsByIDs bypasses the cache: result transcripts want the questions
// exactly as persisted.
func (c *QuestionCache) QuestionsByIDs(ctx context.Context, ids []string) ([]domain.QuestionWithOptions, error) {
	return c.loader.QuestionsByIDs(ctx, ids)
}

// CountQuestions bypasses the cache: the finish check needs the count the
// store would see, and the count query is cheap.
func (c *QuestionCache) CountQuestions(ctx context.Context, courseID, origin string) (int, error) {
	return c.loader.CountQuestions(ctx, courseID, origin)
}

// OriginsByContent bypasses the cache: the content join spans all courses
// and has no stable per-course key.
func (c *QuestionCache) OriginsByContent(ctx context.Context, contents []string) (map[string][]string, error) {
	return c.loader.OriginsByContent(ctx, contents)
}

func (c *QuestionCache) readCached(ctx context.Context, key string, v interface{}) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c *QuestionCache) writeCached(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// best-effort; a failed write just means the next read loads again
	_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
