package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	s1, err := b.Subscribe(KindRawOutput, SubscribeOptions{})
	require.NoError(t, err)
	s2, err := b.Subscribe(KindRawOutput, SubscribeOptions{})
	require.NoError(t, err)
	other, err := b.Subscribe(KindSend, SubscribeOptions{})
	require.NoError(t, err)

	n := b.Publish(RawTextEvent("line"))
	assert.Equal(t, 2, n)

	assert.Equal(t, "line", (<-s1.Events()).Output.Text)
	assert.Equal(t, "line", (<-s2.Events()).Output.Text)
	assert.Len(t, other.Events(), 0)
	assert.Equal(t, uint64(1), b.Published())
}

func TestUnsubscribeReleasesOnce(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(KindRawOutput, SubscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Count(KindRawOutput))

	require.NoError(t, sub.Close())
	assert.Equal(t, 0, b.Count(KindRawOutput))

	_, open := <-sub.Events()
	assert.False(t, open, "events channel should be closed")

	err = b.Unsubscribe(sub)
	assert.True(t, errors.Is(err, ErrSubscriptionNotFound))

	assert.Equal(t, 0, b.Publish(RawTextEvent("after")))
}

func TestOverflowDisconnect(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(KindRawOutput, SubscribeOptions{QueueSize: 2})
	require.NoError(t, err)

	b.Publish(RawTextEvent("1"))
	b.Publish(RawTextEvent("2"))
	select {
	case <-sub.Overflow():
		t.Fatal("overflow signalled before queue was full")
	default:
	}

	assert.Equal(t, 0, b.Publish(RawTextEvent("3")))
	select {
	case <-sub.Overflow():
	default:
		t.Fatal("overflow not signalled")
	}

	// Delivery stays stopped even after the queue drains.
	<-sub.Events()
	assert.Equal(t, 0, b.Publish(RawTextEvent("4")))
	assert.Equal(t, uint64(2), sub.Dropped())
}

func TestOverflowDrop(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(KindRawOutput, SubscribeOptions{QueueSize: 1, Overflow: OverflowDrop})
	require.NoError(t, err)

	b.Publish(RawTextEvent("1"))
	b.Publish(RawTextEvent("2"))
	assert.Equal(t, uint64(1), sub.Dropped())

	<-sub.Events()
	assert.Equal(t, 1, b.Publish(RawTextEvent("3")))
	assert.Equal(t, "3", (<-sub.Events()).Output.Text)
}

func TestClose(t *testing.T) {
	b := New()
	sub, err := b.Subscribe(KindSend, SubscribeOptions{})
	require.NoError(t, err)

	b.Close()
	_, open := <-sub.Events()
	assert.False(t, open)

	_, err = b.Subscribe(KindSend, SubscribeOptions{})
	assert.True(t, errors.Is(err, ErrClosed))
	assert.Equal(t, 0, b.Publish(SendEvent("x", "")))
	b.Close()
}

func TestRawOutputVariants(t *testing.T) {
	text := RawTextEvent("a")
	assert.True(t, text.Output.IsText())

	frame := RawFrameEvent(&n2k.Frame{PGN: 127250})
	assert.False(t, frame.Output.IsText())
	assert.Equal(t, KindRawOutput, frame.Kind)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub, err := b.Subscribe(KindRawOutput, SubscribeOptions{QueueSize: 4})
				if err != nil {
					return
				}
				b.Publish(RawTextEvent("x"))
				_ = sub.Close()
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				b.Publish(RawTextEvent("y"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Count(KindRawOutput))
}
