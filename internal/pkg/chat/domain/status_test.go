package chat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
	assert.Equal(t, 0, DeliveryStatus("bogus").Rank())
}

func TestStatusAdvances(t *testing.T) {
	assert.True(t, StatusSent.Advances(StatusDelivered))
	assert.True(t, StatusSent.Advances(StatusRead))
	assert.True(t, StatusDelivered.Advances(StatusRead))

	assert.False(t, StatusDelivered.Advances(StatusSent))
	assert.False(t, StatusRead.Advances(StatusDelivered))
	assert.False(t, StatusRead.Advances(StatusRead))
	assert.False(t, StatusSent.Advances(StatusSent))
	assert.False(t, StatusSent.Advances(DeliveryStatus("bogus")))
}

// Applying any interleaving of delivered/read updates must leave the status at
// the highest rank seen, never regressing.
func TestStatusMonotonicUnderInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		current := StatusSent
		highest := StatusSent
		for i := 0; i < 20; i++ {
			var next DeliveryStatus
			if rng.Intn(2) == 0 {
				next = StatusDelivered
			} else {
				next = StatusRead
			}
			if current.Advances(next) {
				current = next
			}
			if next.Rank() > highest.Rank() {
				highest = next
			}
		}
		assert.Equal(t, highest, current, "trial %d", trial)
	}
}
