// Package rediscache implements a read-through cache of quiz definitions on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/quiz"
)

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

type quizCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

var _ quiz.Cache = (*quizCache)(nil)

func NewQuizCache(rdb redis.Cmdable, conf *core.Config) quiz.Cache {
	return &quizCache{
		rdb:    rdb,
		ttl:    conf.Redis.QuizTTL,
		prefix: quizKeyPrefix(conf),
	}
}

func quizKeyPrefix(conf *core.Config) string {
	return conf.AppName + ":" + conf.Env + ":quiz:"
}

func (c *quizCache) key(id string) string {
	return c.prefix + id
}

func (c *quizCache) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	data, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		return quiz.Quiz{}, quiz.ErrCacheMiss
	}
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "getting cached quiz")
	}
	return decodeQuiz(data)
}

func (c *quizCache) SetQuiz(ctx context.Context, qz quiz.Quiz) error {
	data, err := json.Marshal(qz)
	if err != nil {
		return errors.Wrap(err, "encoding quiz")
	}
	return errors.Wrap(c.rdb.Set(ctx, c.key(qz.ID), data, c.ttl).Err(), "caching quiz")
}

// decodeQuiz restores the parent IDs, which are not serialized.
func decodeQuiz(data []byte) (quiz.Quiz, error) {
	var qz quiz.Quiz
	if err := json.Unmarshal(data, &qz); err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "decoding cached quiz")
	}
	for i := range qz.Questions {
		q := &qz.Questions[i]
		q.QuizID = qz.ID
		for j := range q.Options {
			q.Options[j].QuestionID = q.ID
		}
		for j := range q.CorrectAnswers {
			q.CorrectAnswers[j].QuestionID = q.ID
		}
	}
	return qz, nil
}
