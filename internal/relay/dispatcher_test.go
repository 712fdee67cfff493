package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverPrefersReplyWithinWindow(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	messenger := &fakeMessenger{}
	ev := &Inbound{UserID: "u1", ReplyToken: "tok", ReceivedAt: time.Now()}

	route, err := d.Deliver(context.Background(), messenger, ev, "hi")
	require.NoError(t, err)
	assert.Equal(t, RouteReply, route)
	assert.Equal(t, []string{"hi"}, messenger.replies)
	assert.Empty(t, messenger.pushes)
}

func TestDeliverFallsBackToPushAfterWindow(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	received := time.Now()
	d.now = func() time.Time { return received.Add(31 * time.Second) }

	messenger := &fakeMessenger{}
	ev := &Inbound{UserID: "u1", ReplyToken: "tok", ReceivedAt: received}

	route, err := d.Deliver(context.Background(), messenger, ev, "late")
	require.NoError(t, err)
	assert.Equal(t, RoutePush, route)
	assert.Empty(t, messenger.replies)
	assert.Equal(t, []string{"late"}, messenger.pushes)
}

func TestDeliverBoundaryIsExclusive(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	received := time.Now()
	d.now = func() time.Time { return received.Add(30 * time.Second) }

	messenger := &fakeMessenger{}
	ev := &Inbound{UserID: "u1", ReplyToken: "tok", ReceivedAt: received}

	route, err := d.Deliver(context.Background(), messenger, ev, "edge")
	require.NoError(t, err)
	assert.Equal(t, RoutePush, route)
}

func TestDeliverWithoutTokenPushes(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	messenger := &fakeMessenger{}
	ev := &Inbound{UserID: "u1", ReceivedAt: time.Now()}

	route, err := d.Deliver(context.Background(), messenger, ev, "hi")
	require.NoError(t, err)
	assert.Equal(t, RoutePush, route)
}

func TestDeliverReplyTokenIsSingleUse(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	messenger := &fakeMessenger{}
	ev := &Inbound{UserID: "u1", ReplyToken: "tok", ReceivedAt: time.Now()}

	route, err := d.Deliver(context.Background(), messenger, ev, "one")
	require.NoError(t, err)
	assert.Equal(t, RouteReply, route)

	route, err = d.Deliver(context.Background(), messenger, ev, "two")
	require.NoError(t, err)
	assert.Equal(t, RoutePush, route)
	assert.Equal(t, []string{"one"}, messenger.replies)
	assert.Equal(t, []string{"two"}, messenger.pushes)
}

func TestDeliverReturnsDeliveryError(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 30*time.Second)
	messenger := &fakeMessenger{replyErr: errors.New("rate limited")}
	ev := &Inbound{UserID: "u1", ReplyToken: "tok", ReceivedAt: time.Now()}

	route, err := d.Deliver(context.Background(), messenger, ev, "hi")
	assert.Error(t, err)
	assert.Equal(t, RouteReply, route)
	// The token was consumed by the attempt; it is not reused.
	assert.True(t, ev.replyConsumed)
}
