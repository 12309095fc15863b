package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorDeliversMatchingReply(t *testing.T) {
	collector := NewCollector()
	done := make(chan Message, 1)
	go func() {
		msg, err := collector.Await(context.Background(), "c1", "u1", time.Second)
		assert.NoError(t, err)
		done <- msg
	}()

	require.Eventually(t, func() bool { return collector.Pending() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, collector.Offer(Message{ID: "m0", ChannelID: "c1", Author: User{ID: "someone-else"}}))
	assert.False(t, collector.Offer(Message{ID: "m1", ChannelID: "c2", Author: User{ID: "u1"}}))
	assert.True(t, collector.Offer(Message{ID: "m2", ChannelID: "c1", Author: User{ID: "u1"}}))

	msg := <-done
	assert.Equal(t, "m2", msg.ID)
	assert.Equal(t, 0, collector.Pending())
}

func TestCollectorTimeoutDropsWaiter(t *testing.T) {
	collector := NewCollector()
	_, err := collector.Await(context.Background(), "c1", "u1", 10*time.Millisecond)
	require.ErrorIs(t, err, ErrAwaitTimeout)
	assert.Equal(t, 0, collector.Pending())
	assert.False(t, collector.Offer(Message{ChannelID: "c1", Author: User{ID: "u1"}}))
}

func TestCollectorCancel(t *testing.T) {
	collector := NewCollector()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collector.Await(ctx, "c1", "u1", time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, collector.Pending())
}

func TestUserTag(t *testing.T) {
	assert.Equal(t, "mod#0001", User{Username: "mod", Discriminator: "0001"}.Tag())
	assert.Equal(t, "mod", User{Username: "mod", Discriminator: "0"}.Tag())
}
