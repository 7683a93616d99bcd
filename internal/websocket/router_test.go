package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"global-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1_700_000_000_123)

func newTestRouter() (*Router, *Registry, *Metrics) {
	log := logger.Discard()
	registry := NewRegistry(log)
	metrics := NewMetrics()
	router := NewRouter(registry, NewDedupStore(DefaultDedupCapacity), metrics, log)
	router.now = func() time.Time { return fixedNow }
	return router, registry, metrics
}

func TestRouter_Scenario(t *testing.T) {
	router, registry, _ := newTestRouter()
	a, b := newMockPeer(), newMockPeer()
	registry.Register(a)
	registry.Register(b)

	// A sends a message; both receive it stamped
	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"1","user":"u1"}`), a))
	for _, peer := range []*mockPeer{a, b} {
		msgs := peer.decoded()
		require.Len(t, msgs, 1)
		assert.Equal(t, "1", msgs[0]["id"])
		assert.Equal(t, "u1", msgs[0]["user"])
		assert.EqualValues(t, fixedNow.UnixMilli(), msgs[0]["serverTimestamp"])
	}

	// A resends it; nobody receives it
	assert.Equal(t, Duplicate, router.Handle([]byte(`{"id":"1","user":"u1"}`), a))
	assert.Len(t, a.getMessages(), 1)
	assert.Len(t, b.getMessages(), 1)

	// A sends a new id; both receive it
	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"2","user":"u1"}`), a))
	assert.Len(t, a.getMessages(), 2)
	assert.Len(t, b.getMessages(), 2)
}

func TestRouter_MissingIDOrSenderAlwaysForwards(t *testing.T) {
	router, registry, metrics := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	payloads := []string{
		`{"user":"u1","text":"no id"}`,
		`{"id":"1","text":"no user"}`,
		`{"text":"neither"}`,
	}
	for _, p := range payloads {
		for i := 0; i < 3; i++ {
			assert.Equal(t, Forwarded, router.Handle([]byte(p), peer), p)
		}
	}

	assert.Len(t, peer.getMessages(), len(payloads)*3)
	assert.Zero(t, metrics.Snapshot().Duplicates)
}

func TestRouter_NonScalarIDOrSenderStillDeduplicates(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	payloads := []string{
		`{"id":null,"user":"u1"}`,
		`{"id":"1","user":{"name":"u1"}}`,
		`{"id":[1,2],"user":"u2"}`,
	}
	for _, p := range payloads {
		assert.Equal(t, Forwarded, router.Handle([]byte(p), peer), p)
		assert.Equal(t, Duplicate, router.Handle([]byte(p), peer), p)
	}

	assert.Len(t, peer.getMessages(), len(payloads))
}

func TestRouter_ForwardsHTMLCharactersVerbatim(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	require.Equal(t, Forwarded, router.Handle([]byte(`{"text":"<b>&</b>"}`), peer))

	msgs := peer.getMessages()
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0]), `"text":"<b>&</b>"`)
	assert.NotContains(t, string(msgs[0]), `\u003c`)
}

func TestRouter_KeepsExistingServerTimestamp(t *testing.T) {
	router, registry, metrics := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	router.Handle([]byte(`{"id":"1","user":"u1","serverTimestamp":42}`), peer)

	msgs := peer.decoded()
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 42, msgs[0]["serverTimestamp"])
	assert.Zero(t, metrics.Snapshot().Stamped)
}

func TestRouter_PreservesPayloadFields(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	in := `{"id":"7","user":"u1","text":"héllo","meta":{"tags":["a","b"],"n":1.5},"flag":true,"nothing":null}`
	require.Equal(t, Forwarded, router.Handle([]byte(in), peer))

	msgs := peer.getMessages()
	require.Len(t, msgs, 1)
	expected := fmt.Sprintf(
		`{"id":"7","user":"u1","text":"héllo","meta":{"tags":["a","b"],"n":1.5},"flag":true,"nothing":null,"serverTimestamp":%d}`,
		fixedNow.UnixMilli())
	assert.JSONEq(t, expected, string(msgs[0]))
}

func TestRouter_DecodeFailuresAreDropped(t *testing.T) {
	router, registry, metrics := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	for _, p := range []string{`hello world`, `{"id":`, `[1,2]`, `"text"`, `42`, `null`, ``} {
		assert.Equal(t, DecodeFailed, router.Handle([]byte(p), peer), p)
	}

	assert.Empty(t, peer.getMessages())
	assert.EqualValues(t, 7, metrics.ErrorCount(DecodeError))
	assert.Zero(t, metrics.Snapshot().Forwarded)
}

func TestRouter_NumericIDsDeduplicate(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":5,"user":"u1"}`), peer))
	assert.Equal(t, Duplicate, router.Handle([]byte(`{"id":5,"user":"u1"}`), peer))
}

func TestRouter_DedupIsPerSender(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"1","user":"u1"}`), peer))
	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"1","user":"u2"}`), peer))
	assert.Len(t, peer.getMessages(), 2)
}

func TestRouter_WindowResetsAfterOverflow(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	for i := 1; i <= DefaultDedupCapacity+1; i++ {
		require.Equal(t, Forwarded, router.Handle([]byte(fmt.Sprintf(`{"id":"%d","user":"u1"}`, i)), peer))
	}

	// The window was cleared by the 101st id, so id 1 is new again
	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"1","user":"u1"}`), peer))
	assert.Len(t, peer.getMessages(), DefaultDedupCapacity+2)
}

func TestRouter_SkipsClosedPeersAndIsolatesFailures(t *testing.T) {
	router, registry, metrics := newTestRouter()
	healthy, closed, failing := newMockPeer(), newMockPeer(), newMockPeer()
	registry.Register(healthy)
	registry.Register(closed)
	registry.Register(failing)
	closed.close()
	failing.failSend.Store(true)

	assert.Equal(t, Forwarded, router.Handle([]byte(`{"id":"1","user":"u1"}`), healthy))

	assert.Len(t, healthy.getMessages(), 1)
	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.Delivered)
	assert.EqualValues(t, 1, snap.Skipped)
	assert.EqualValues(t, 1, metrics.ErrorCount(SendError))
}

func TestRouter_NilOrigin(t *testing.T) {
	router, registry, _ := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	assert.Equal(t, Forwarded, router.Handle([]byte(`{"text":"system"}`), nil))
	assert.Len(t, peer.getMessages(), 1)
}

func TestRouter_ConcurrentDuplicatesForwardOnce(t *testing.T) {
	router, registry, metrics := newTestRouter()
	peer := newMockPeer()
	registry.Register(peer)

	const senders = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			router.Handle([]byte(`{"id":"race","user":"u1"}`), peer)
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, peer.getMessages(), 1)
	assert.EqualValues(t, senders-1, metrics.Snapshot().Duplicates)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "forwarded", Forwarded.String())
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "decode_failed", DecodeFailed.String())
	assert.Equal(t, "unknown", Result(99).String())
}
