package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Finality errors.
var (
	// ErrSettlementFailed means the ledger reported the settlement as failed
	// after submission. Funds may have partially moved.
	ErrSettlementFailed = errors.New("settlement failed on ledger")

	// ErrFinalityTimeout means the deadline passed without a terminal event.
	ErrFinalityTimeout = errors.New("settlement finality timed out")
)

// finality event statuses reported by the ledger feed.
const (
	statusFinal  = "final"
	statusFailed = "failed"
)

// FinalityWatcher waits for settlement finality over a websocket event feed.
// One watcher serves all swaps; each wait opens a scoped subscription.
type FinalityWatcher struct {
	endpoint string
	timeout  time.Duration
	dialer   *websocket.Dialer
	logger   *log.Logger
}

// NewFinalityWatcher creates a watcher for the given feed endpoint.
func NewFinalityWatcher(endpoint string, timeout time.Duration, logger *log.Logger) *FinalityWatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &FinalityWatcher{
		endpoint: endpoint,
		timeout:  timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type subscribeMsg struct {
	Op  string `json:"op"`
	Ref string `json:"ref"`
}

type finalityEvent struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// WaitForFinality blocks until the settlement reference reaches a terminal
// state, the watcher's deadline passes, or ctx is cancelled. Returns nil on
// finality, ErrSettlementFailed on a failed settlement and
// ErrFinalityTimeout on deadline.
func (w *FinalityWatcher) WaitForFinality(ctx context.Context, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	conn, _, err := w.dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial finality feed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMsg{Op: "subscribe", Ref: ref}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	events := make(chan finalityEvent, 1)
	readErr := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var ev finalityEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				w.logger.Printf("[ledger] malformed finality event: %v", err)
				continue
			}
			if ev.Ref != ref {
				continue
			}
			select {
			case events <- ev:
			default:
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Force the read loop to unblock.
			conn.Close()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: ref %s", ErrFinalityTimeout, ref)
			}
			return ctx.Err()
		case err := <-readErr:
			if ctx.Err() != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return fmt.Errorf("%w: ref %s", ErrFinalityTimeout, ref)
				}
				return ctx.Err()
			}
			return fmt.Errorf("finality feed read: %w", err)
		case ev := <-events:
			switch ev.Status {
			case statusFinal:
				return nil
			case statusFailed:
				return fmt.Errorf("%w: ref %s: %s", ErrSettlementFailed, ref, ev.Reason)
			}
			// Non-terminal progress events are ignored.
		}
	}
}
