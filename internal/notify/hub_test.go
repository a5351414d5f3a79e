package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubDeliversToOwnerOnly(t *testing.T) {
	h := NewHub()

	aliceCh, cancelAlice := h.Subscribe("alice")
	defer cancelAlice()
	bobCh, cancelBob := h.Subscribe("bob")
	defer cancelBob()

	h.Publish(Event{Op: "INSERT", ID: "b1", UserID: "alice"})

	ev := recvEvent(t, aliceCh)
	assert.Equal(t, "INSERT", ev.Op)
	assert.Equal(t, "b1", ev.ID)

	select {
	case ev := <-bobCh:
		t.Fatalf("bob received alice's event: %+v", ev)
	default:
	}
}

func TestHubFanOutToMultipleTabs(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe("alice")
	defer cancel1()
	ch2, cancel2 := h.Subscribe("alice")
	defer cancel2()

	h.Publish(Event{Op: "DELETE", ID: "b2", UserID: "alice"})

	assert.Equal(t, "b2", recvEvent(t, ch1).ID)
	assert.Equal(t, "b2", recvEvent(t, ch2).ID)
}

func TestHubCancelReleasesSubscription(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("alice")
	require.Equal(t, 1, h.Subscribers("alice"))

	cancel()
	assert.Equal(t, 0, h.Subscribers("alice"))

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")

	// Cancel must be safe to call twice.
	cancel()

	// Publishing after teardown must not panic or deliver.
	h.Publish(Event{Op: "INSERT", UserID: "alice"})
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("alice")
	defer cancel()

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(Event{Op: "INSERT", UserID: "alice"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestDecodeEvent(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Event
		wantErr bool
	}{
		{
			name:    "insert",
			payload: `{"op":"INSERT","id":"7f2","user_id":"u1"}`,
			want:    Event{Op: "INSERT", ID: "7f2", UserID: "u1"},
		},
		{
			name:    "delete",
			payload: `{"op":"DELETE","id":"7f2","user_id":"u1"}`,
			want:    Event{Op: "DELETE", ID: "7f2", UserID: "u1"},
		},
		{
			name:    "not json",
			payload: `boom`,
			wantErr: true,
		},
		{
			name:    "missing user id",
			payload: `{"op":"INSERT","id":"7f2"}`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := decodeEvent(tc.payload)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}
