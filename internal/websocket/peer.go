//go:generate go run go.uber.org/mock/mockgen -source=peer.go -destination=../mocks/mock_peer.go -package=mocks

package websocket

// Peer is one connected client as seen by the relay core.
//
// Implementations must be safe for concurrent use: Send may be called from
// several broadcasting goroutines at once. Send is fire-and-forget; it must
// not wait for the remote end to acknowledge anything.
type Peer interface {
	ID() string
	IsOpen() bool
	Send(payload []byte) error
}
