package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intents/internal/intent"
)

func TestIntentQueue_StampsAndDrains(t *testing.T) {
	q := newIntentQueue(NewClockAt(4), 0)

	seq, err := q.Enqueue(intent.Intent{ActorID: "A", Kind: intent.KindAttack, Processed: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)
	seq, err = q.Enqueue(intent.Intent{ActorID: "B", Kind: intent.KindAttack})
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)
	assert.Equal(t, 2, q.Len())

	batch := q.Drain()
	require.Len(t, batch, 2)
	assert.Equal(t, int64(5), batch[0].Seq)
	assert.False(t, batch[0].Processed, "enqueue resets the processed flag")
	assert.Nil(t, q.Drain())
	assert.Zero(t, q.Len())
}

func TestIntentQueue_CloseKeepsFirstReason(t *testing.T) {
	q := newIntentQueue(NewClock(), 0)
	_, err := q.Enqueue(intent.Intent{ActorID: "A"})
	require.NoError(t, err)

	dropped := q.Close(ErrSessionEnded)
	assert.Len(t, dropped, 1)
	assert.Nil(t, q.Close(ErrSessionHalted))

	_, err = q.Enqueue(intent.Intent{ActorID: "A"})
	assert.ErrorIs(t, err, ErrSessionEnded)
}
