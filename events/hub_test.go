package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("surface"))
	}))
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, surfaceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?surface=" + surfaceID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestPublishReachesSubscribersOfSurface(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := startHub(t)
	defer srv.Close()

	a := dial(t, srv, "s1")
	b := dial(t, srv, "s2")
	require.Eventually(t, func() bool {
		return hub.Subscribers("s1") == 1 && hub.Subscribers("s2") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish(Event{Type: TypeCompleted, SurfaceID: "s1", QueryID: "q1"})

	var ev Event
	_ = a.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, a.ReadJSON(&ev))
	assert.Equal(t, TypeCompleted, ev.Type)
	assert.Equal(t, "q1", ev.QueryID)
	assert.False(t, ev.At.IsZero())

	_ = b.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "other surfaces receive nothing")

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		return hub.Subscribers("s1") == 0 && hub.Subscribers("s2") == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCloseDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := startHub(t)
	defer srv.Close()

	conn := dial(t, srv, "s1")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers("s1"))

	// new subscribers are refused once closed
	late, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/?surface=s1", nil)
	if err == nil {
		_ = late.SetReadDeadline(time.Now().Add(time.Second))
		_, _, err = late.ReadMessage()
		assert.Error(t, err)
		late.Close()
	}
}

func TestStalledSubscriberDoesNotBlockOtherSurfaces(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv := startHub(t)
	defer srv.Close()

	a := dial(t, srv, "s1")
	defer a.Close()
	b := dial(t, srv, "s2")
	defer b.Close()
	require.Eventually(t, func() bool {
		return hub.Subscribers("s1") == 1 && hub.Subscribers("s2") == 1
	}, time.Second, 5*time.Millisecond)

	// hold the writer of s1 as if its socket were stalled
	stalled := hub.snapshot("s1")[0]
	stalled.mu.Lock()
	blocked := make(chan struct{})
	go func() {
		hub.Publish(Event{Type: TypeSubmitted, SurfaceID: "s1"})
		close(blocked)
	}()

	published := make(chan struct{})
	go func() {
		hub.Publish(Event{Type: TypeCompleted, SurfaceID: "s2"})
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish to s2 waited on s1")
	}
	var ev Event
	_ = b.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, b.ReadJSON(&ev))
	assert.Equal(t, TypeCompleted, ev.Type)

	stalled.mu.Unlock()
	<-blocked
	_ = a.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, a.ReadJSON(&ev))
	assert.Equal(t, TypeSubmitted, ev.Type)

	hub.Close()
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	assert.NotPanics(t, func() {
		hub.Publish(Event{Type: TypeSubmitted, SurfaceID: "nobody"})
	})
}
