package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
)

// Client reads signatures and transactions touching one watched address
type Client struct {
	rpc        *rpc.Client
	address    solana.PublicKey
	commitment rpc.CommitmentType
}

// NewRPC builds a solana-go RPC client on top of the given HTTP client
func NewRPC(httpClient *http.Client, endpoint string) *rpc.Client {
	return rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: httpClient,
	}))
}

// NewClient creates a client watching address on the RPC endpoint
func NewClient(rpcClient *rpc.Client, address string) (*Client, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return &Client{
		rpc:        rpcClient,
		address:    pk,
		commitment: rpc.CommitmentConfirmed,
	}, nil
}

// Address returns the watched address
func (c *Client) Address() string {
	return c.address.String()
}

// LatestSignatures returns up to limit signatures for the watched address, newest first
func (c *Client) LatestSignatures(ctx context.Context, limit int) ([]string, error) {
	return c.signatures(ctx, solana.Signature{}, limit)
}

// SignaturesUntil returns signatures newer than until, newest first.
// An empty until behaves like LatestSignatures.
func (c *Client) SignaturesUntil(ctx context.Context, until string, limit int) ([]string, error) {
	var untilSig solana.Signature
	if until != "" {
		sig, err := solana.SignatureFromBase58(until)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		untilSig = sig
	}
	return c.signatures(ctx, untilSig, limit)
}

func (c *Client) signatures(ctx context.Context, until solana.Signature, limit int) ([]string, error) {
	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, c.address, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Until:      until,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: getSignaturesForAddress: %w", ErrRPCRequestFailed, err)
	}

	sigs := make([]string, 0, len(out))
	for _, s := range out {
		sigs = append(sigs, s.Signature.String())
	}
	return sigs, nil
}

// Transaction fetches and flattens a confirmed transaction
func (c *Client) Transaction(ctx context.Context, signature string) (*Transaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && out == nil) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionMissing, signature)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getTransaction: %w", ErrRPCRequestFailed, err)
	}
	if out.Meta == nil || out.Transaction == nil {
		return nil, fmt.Errorf("%w: %s has no meta", ErrDecodeFailed, signature)
	}

	decoded, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if len(decoded.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("%w: %s has no account keys", ErrDecodeFailed, signature)
	}

	pre, err := convertTokenBalances(out.Meta.PreTokenBalances)
	if err != nil {
		return nil, err
	}
	post, err := convertTokenBalances(out.Meta.PostTokenBalances)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		Signature:         signature,
		FeePayer:          decoded.Message.AccountKeys[0].String(),
		Failed:            out.Meta.Err != nil,
		PreTokenBalances:  pre,
		PostTokenBalances: post,
	}
	if out.BlockTime != nil {
		tx.BlockTime = out.BlockTime.Time().UTC()
	}
	return tx, nil
}

// convertTokenBalances keeps balance lines with a known owner
func convertTokenBalances(in []rpc.TokenBalance) ([]TokenBalance, error) {
	balances := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		if b.Owner == nil || b.UiTokenAmount == nil {
			continue
		}

		amount, err := decimal.NewFromString(uiAmount(b.UiTokenAmount))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}

		balances = append(balances, TokenBalance{
			Owner:  b.Owner.String(),
			Mint:   b.Mint.String(),
			Amount: amount,
		})
	}
	return balances, nil
}

// uiAmount prefers the exact string form and falls back to raw units
func uiAmount(a *rpc.UiTokenAmount) string {
	if a.UiAmountString != "" {
		return a.UiAmountString
	}
	raw, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return a.Amount
	}
	return raw.Shift(-int32(a.Decimals)).String()
}

// NewHTTPClient returns an HTTP client suitable for NewRPC
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
