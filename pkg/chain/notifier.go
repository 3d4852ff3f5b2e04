package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Sentinel errors for the push channel
var (
	ErrSubscribeFailed = errors.New("account subscription failed")
	ErrStreamClosed    = errors.New("notification stream closed")
)

// AccountNotifier subscribes to account changes over the JSON-RPC websocket
// and turns every notification into a wake-up signal.
type AccountNotifier struct {
	url        string
	address    string
	commitment string
	dialer     *websocket.Dialer
	backoff    time.Duration
	log        *slog.Logger
}

// NotifierOption configures the AccountNotifier
type NotifierOption func(*AccountNotifier)

// WithReconnectBackoff sets the pause between reconnect attempts
func WithReconnectBackoff(d time.Duration) NotifierOption {
	return func(n *AccountNotifier) { n.backoff = d }
}

// WithNotifierLogger injects the logger used for reconnect diagnostics
func WithNotifierLogger(log *slog.Logger) NotifierOption {
	return func(n *AccountNotifier) { n.log = log }
}

// NewAccountNotifier creates a notifier for address on the websocket endpoint
func NewAccountNotifier(wsURL, address string, opts ...NotifierOption) *AccountNotifier {
	n := &AccountNotifier{
		url:        wsURL,
		address:    address,
		commitment: "confirmed",
		dialer:     websocket.DefaultDialer,
		backoff:    DefaultReconnectBackoff,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     *int      `json:"id,omitempty"`
	Method string    `json:"method,omitempty"`
	Error  *wsRPCErr `json:"error,omitempty"`
}

type wsRPCErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Run keeps a subscription alive until ctx is cancelled.
// Signals are dropped when the receiver is busy, since one pending wake-up
// already covers everything that arrived meanwhile.
func (n *AccountNotifier) Run(ctx context.Context, notify chan<- struct{}) error {
	for {
		err := n.session(ctx, notify)
		if ctx.Err() != nil {
			return nil
		}

		n.log.WarnContext(ctx, "Account subscription dropped, reconnecting",
			slog.String("address", n.address),
			slog.Duration("backoff", n.backoff),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(n.backoff):
		}
	}
}

// session runs one connection from dial to first failure
func (n *AccountNotifier) session(ctx context.Context, notify chan<- struct{}) error {
	conn, _, err := n.dialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrSubscribeFailed, err)
	}
	defer conn.Close()

	// Unblock ReadJSON on cancellation
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			n.address,
			map[string]string{"encoding": "jsonParsed", "commitment": n.commitment},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("%w: %w", ErrStreamClosed, err)
		}

		if msg.Error != nil {
			return fmt.Errorf("%w: %d %s", ErrSubscribeFailed, msg.Error.Code, msg.Error.Message)
		}

		if msg.Method != "accountNotification" {
			continue
		}

		select {
		case notify <- struct{}{}:
		default:
		}
	}
}
