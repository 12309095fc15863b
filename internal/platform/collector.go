package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrAwaitTimeout = errors.New("platform: no reply before timeout")

type waiter struct {
	channelID string
	userID    string
	reply     chan Message
}

// Collector hands inbound messages to whoever is waiting for a reply from a
// given user in a given channel.
type Collector struct {
	mu      sync.Mutex
	waiters []*waiter
}

func NewCollector() *Collector {
	return &Collector{}
}

// Offer delivers msg to the oldest matching waiter. It reports whether the
// message was consumed.
func (c *Collector) Offer(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w.channelID != msg.ChannelID || w.userID != msg.Author.ID {
			continue
		}
		c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
		w.reply <- msg
		return true
	}
	return false
}

// Await blocks until the user replies in the channel, the timeout elapses or
// ctx is cancelled. Abandoned waits are dropped without side effects.
func (c *Collector) Await(ctx context.Context, channelID, userID string, timeout time.Duration) (Message, error) {
	w := &waiter{channelID: channelID, userID: userID, reply: make(chan Message, 1)}
	c.mu.Lock()
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-w.reply:
		return msg, nil
	case <-timer.C:
		c.drop(w)
		return c.lateReply(w, ErrAwaitTimeout)
	case <-ctx.Done():
		c.drop(w)
		return c.lateReply(w, ctx.Err())
	}
}

// Pending reports how many waits are outstanding.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Collector) drop(target *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// lateReply covers a reply that raced the timer: it was already removed from
// the waiter list, so it must not be lost.
func (c *Collector) lateReply(w *waiter, err error) (Message, error) {
	select {
	case msg := <-w.reply:
		return msg, nil
	default:
		return Message{}, err
	}
}
