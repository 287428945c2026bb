package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewItineraryRunTask(t *testing.T) {
	payload := &ItineraryRunPayload{
		RunID:     uuid.New().String(),
		SessionID: "sess-1",
		VideoKey:  "reels/lisbon.mp4",
		Days:      3,
		Prompt:    "slow mornings",
	}

	task, err := NewItineraryRunTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeItineraryRun, task.Type())

	var decoded ItineraryRunPayload
	err = json.Unmarshal(task.Payload(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, payload.RunID, decoded.RunID)
	assert.Equal(t, payload.SessionID, decoded.SessionID)
	assert.Equal(t, payload.VideoKey, decoded.VideoKey)
	assert.Equal(t, payload.Days, decoded.Days)
	assert.Equal(t, payload.Prompt, decoded.Prompt)
}

func TestItineraryWorker_ProcessTask_InvalidPayload(t *testing.T) {
	worker := NewItineraryWorker(zap.NewNop(), nil)

	task := asynq.NewTask(TypeItineraryRun, []byte("invalid json"))

	err := worker.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestItineraryWorker_ProcessTask_InvalidRunID(t *testing.T) {
	worker := NewItineraryWorker(zap.NewNop(), nil)

	data, err := json.Marshal(&ItineraryRunPayload{
		RunID:     "not-a-uuid",
		SessionID: "sess-1",
		VideoKey:  "reels/lisbon.mp4",
	})
	require.NoError(t, err)

	err = worker.ProcessTask(context.Background(), asynq.NewTask(TypeItineraryRun, data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run id")
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
