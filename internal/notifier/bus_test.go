package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, ch <-chan Event, d time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(d):
		return Event{}, false
	}
}

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	sub := b.Subscribe(TagPut)
	b.Publish(Event{Kind: TagPut, LocalID: "tag-1"})

	ev, ok := recvWithin(t, sub, time.Second)
	require.True(t, ok, "expected an event within the timeout")
	assert.Equal(t, TagPut, ev.Kind)
	assert.Equal(t, "tag-1", string(ev.LocalID))
}

func TestPublishOnlyReachesSubscribersOfThatKind(t *testing.T) {
	b := New()
	defer b.Close()

	tagSub := b.Subscribe(TagPut)
	noteSub := b.Subscribe(NotePut)

	b.Publish(Event{Kind: TagPut, LocalID: "tag-1"})

	_, ok := recvWithin(t, tagSub, time.Second)
	assert.True(t, ok)

	_, ok = recvWithin(t, noteSub, 100*time.Millisecond)
	assert.False(t, ok, "note subscriber should not receive a tag event")
}

func TestPublishFansOutToMultipleSubscribersOfSameKind(t *testing.T) {
	b := New()
	defer b.Close()

	first := b.Subscribe(NoteExpunged)
	second := b.Subscribe(NoteExpunged)

	b.Publish(Event{Kind: NoteExpunged, LocalID: "note-1"})

	_, ok := recvWithin(t, first, time.Second)
	assert.True(t, ok)
	_, ok = recvWithin(t, second, time.Second)
	assert.True(t, ok)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := New()
	sub := b.Subscribe(UserPut)
	b.Close()

	b.Publish(Event{Kind: UserPut, LocalID: "user-1"})

	_, ok := recvWithin(t, sub, 100*time.Millisecond)
	assert.False(t, ok, "a publish after Close should never be delivered")
}

func TestSlowSubscriberDropsInsteadOfBlockingBus(t *testing.T) {
	b := New()
	defer b.Close()

	slow := b.Subscribe(ResourcePut)
	// Overflow the subscriber's buffered channel (capacity 32) without
	// ever draining it, then confirm the bus still accepts and delivers
	// to a second, draining subscriber.
	for i := 0; i < 64; i++ {
		b.Publish(Event{Kind: ResourcePut, LocalID: "r"})
	}
	_ = slow

	fast := b.Subscribe(SavedSearchPut)
	b.Publish(Event{Kind: SavedSearchPut, LocalID: "s-1"})
	ev, ok := recvWithin(t, fast, time.Second)
	require.True(t, ok)
	assert.Equal(t, SavedSearchPut, ev.Kind)
}
