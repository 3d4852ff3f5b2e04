// Package auth verifies that a wallet authorised an action by signing a
// timestamped message with its ed25519 key.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/screwyprof/stakevote/pkg/clock"
)

// Action names the operation a message authorises
type Action string

const (
	ActionVote    Action = "vote"
	ActionUnstake Action = "unstake"
)

// DefaultMaxAge is the replay window for signed messages
const DefaultMaxAge = 5 * time.Minute

// Sentinel errors. Missing and malformed input is a client error; the rest
// means the caller could not prove control of the wallet.
var (
	ErrMissingAuthFields = errors.New("missing required authentication fields")
	ErrMalformedMessage  = errors.New("malformed signed message")
	ErrWalletMismatch    = errors.New("public key does not match wallet address")
	ErrActionMismatch    = errors.New("signed message authorises a different action")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrMessageExpired    = errors.New("message has expired")
)

// SignedRequest is the authentication envelope carried by protected requests
type SignedRequest struct {
	Signature     string `json:"signature"`
	PublicKey     string `json:"publicKey"`
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress"`
}

// Message is the signed payload. Timestamp is in unix milliseconds.
type Message struct {
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Time returns the message timestamp
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Bind decodes the action data into v
func (m Message) Bind(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: no data", ErrMalformedMessage)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return nil
}

// Option configures the Verifier
type Option func(*Verifier)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) { v.clock = c }
}

// WithMaxAge sets the replay window
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) { v.maxAge = d }
}

// Verifier checks signed requests
type Verifier struct {
	clock  clock.Clock
	maxAge time.Duration
}

// NewVerifier creates a Verifier with a 5 minute replay window
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		clock:  clock.SystemClock{},
		maxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks that req is a fresh message for action signed by its wallet
func (v *Verifier) Verify(req SignedRequest, action Action) (Message, error) {
	if req.Signature == "" || req.PublicKey == "" || req.Message == "" || req.WalletAddress == "" {
		return Message{}, ErrMissingAuthFields
	}

	if req.PublicKey != req.WalletAddress {
		return Message{}, ErrWalletMismatch
	}

	var msg Message
	if err := json.Unmarshal([]byte(req.Message), &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	if msg.Action != action {
		return Message{}, fmt.Errorf("%w: got %q, want %q", ErrActionMismatch, msg.Action, action)
	}

	if err := verifySignature(req); err != nil {
		return Message{}, err
	}

	if err := v.checkFreshness(msg); err != nil {
		return Message{}, err
	}

	if err := checkDataWallet(msg, req.WalletAddress); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func verifySignature(req SignedRequest) error {
	pk, err := solana.PublicKeyFromBase58(req.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %w", ErrInvalidSignature, err)
	}

	raw, err := base58.Decode(req.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) != solana.SignatureLength {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, solana.SignatureLength, len(raw))
	}

	if !solana.SignatureFromBytes(raw).Verify(pk, []byte(req.Message)) {
		return ErrInvalidSignature
	}
	return nil
}

// checkFreshness rejects messages outside the replay window on either side of now
func (v *Verifier) checkFreshness(msg Message) error {
	age := v.clock.Now().Sub(msg.Time())
	if age > v.maxAge {
		return fmt.Errorf("%w: signed %s ago", ErrMessageExpired, age.Round(time.Second))
	}
	if -age > v.maxAge {
		return fmt.Errorf("%w: timestamp is %s in the future", ErrMessageExpired, (-age).Round(time.Second))
	}
	return nil
}

// checkDataWallet binds the action data to the signing wallet when it names one
func checkDataWallet(msg Message, wallet string) error {
	if len(msg.Data) == 0 {
		return nil
	}

	var data struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if data.WalletAddress != "" && data.WalletAddress != wallet {
		return fmt.Errorf("%w: message data names %s", ErrWalletMismatch, data.WalletAddress)
	}
	return nil
}
