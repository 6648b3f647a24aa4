package eventsvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRecorder struct {
	msgs []string
}

func (l *logRecorder) Debug(msg string, _ ...interface{}) { l.msgs = append(l.msgs, msg) }
func (l *logRecorder) Info(msg string, _ ...interface{})  {}
func (l *logRecorder) Warn(msg string, _ ...interface{})  {}
func (l *logRecorder) Error(msg string, _ ...interface{}) {}
func (l *logRecorder) Fatal(msg string, _ ...interface{}) {}

func TestEncode(t *testing.T) {
	body, err := encode("quiz.passed", map[string]int{"score": 80})
	require.NoError(t, err)

	var evt struct {
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &evt))
	assert.Equal(t, "quiz.passed", evt.Type)
	assert.Equal(t, 80, evt.Payload["score"])
}

func TestConsolePublisher(t *testing.T) {
	logger := new(logRecorder)
	pub := NewConsolePublisher(logger)

	require.NoError(t, pub.Publish(context.Background(), "quiz.attempt.finalized", map[string]string{"attemptId": "a1"}))
	require.Len(t, logger.msgs, 1)
	assert.Contains(t, logger.msgs[0], `"type":"quiz.attempt.finalized"`)
	assert.Contains(t, logger.msgs[0], `"attemptId":"a1"`)
	assert.NoError(t, pub.Close())
}

func TestPublisherMock(t *testing.T) {
	pub := NewPublisherMock()
	ctx := context.Background()

	require.NoError(t, pub.Publish(ctx, "a", 1))
	require.NoError(t, pub.Publish(ctx, "b", 2))
	assert.Equal(t, []string{"a", "b"}, pub.Types())

	pub.Err = errors.New("broker down")
	assert.Error(t, pub.Publish(ctx, "c", 3))
	assert.Len(t, pub.Events(), 2)

	pub.Reset()
	assert.Empty(t, pub.Events())
}
