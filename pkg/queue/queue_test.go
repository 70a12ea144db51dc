package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEnvelope(t *testing.T) {
	job, err := NewJob(QueueEmails, JobTypeEmail, EmailPayload{EmailType: "recovery", RecipientEmail: "ana@example.com"})
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, QueueEmails, job.Queue)
	assert.Equal(t, JobTypeEmail, job.Type)
	assert.Zero(t, job.Attempt)

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "ana@example.com", payload.RecipientEmail)
}

func TestNewJobRejectsUnencodablePayload(t *testing.T) {
	_, err := NewJob(QueueEmails, JobTypeEmail, map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
