package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueOptions(t *testing.T) {
	assert.Nil(t, enqueueOptions(nil))

	opts := enqueueOptions([]EnqueueOption{{
		Queue:     "notifications",
		MaxRetry:  3,
		TaskID:    "n-1",
		Timeout:   time.Minute,
		ProcessIn: time.Second,
	}})
	assert.Len(t, opts, 5)

	assert.Empty(t, enqueueOptions([]EnqueueOption{{}}))
}

func TestParseRedisURL(t *testing.T) {
	_, err := parseRedisURL("")
	assert.Error(t, err)

	_, err = parseRedisURL("http://not-redis")
	assert.Error(t, err)

	opt, err := parseRedisURL("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NotNil(t, opt)
}

func TestAsynqClient_RequiresTaskType(t *testing.T) {
	client, err := NewAsynqClient("redis://localhost:6379/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Enqueue(context.Background(), Task{})
	assert.Error(t, err)
}
