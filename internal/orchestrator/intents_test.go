package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/cryptoengine/internal/executor"
)

func TestIntentQueuePushAndDrain(t *testing.T) {
	q := newIntentQueue(2)

	assert.True(t, q.push(queuedIntent{intent: executor.Intent{Kind: executor.IntentOpen}}))
	assert.True(t, q.push(queuedIntent{intent: executor.Intent{Kind: executor.IntentClose}}))
	assert.False(t, q.push(queuedIntent{intent: executor.Intent{Kind: executor.IntentDCA}}), "queue at capacity should reject without blocking")

	drained := q.drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, executor.IntentOpen, drained[0].intent.Kind)
	assert.Equal(t, executor.IntentClose, drained[1].intent.Kind)

	assert.Empty(t, q.drain(), "a second drain on an empty queue returns nothing")
}

func TestIntentQueueDefaultCapacity(t *testing.T) {
	q := newIntentQueue(0)
	assert.Equal(t, 256, cap(q.ch))
}
