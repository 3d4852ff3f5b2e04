package chain_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/pkg/chain"
)

func TestClientSignatures(t *testing.T) {
	t.Parallel()

	t.Run("it returns signatures newest first and forwards the high-water mark", func(t *testing.T) {
		t.Parallel()

		// Arrange
		payment := solana.NewWallet().PublicKey()
		newest, older, mark := randomSignature(t), randomSignature(t), randomSignature(t)

		rpcServer := newRPCServer(t)
		rpcServer.on("getSignaturesForAddress", func(params []json.RawMessage) any {
			return []map[string]any{
				{"signature": newest.String(), "slot": 11, "err": nil},
				{"signature": older.String(), "slot": 10, "err": nil},
			}
		})
		client := newChainClient(t, rpcServer, payment)

		// Act
		sigs, err := client.SignaturesUntil(t.Context(), mark.String(), 1000)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{newest.String(), older.String()}, sigs)

		params := rpcServer.lastParams("getSignaturesForAddress")
		require.Len(t, params, 2)
		var opts map[string]any
		require.NoError(t, json.Unmarshal(params[1], &opts))
		assert.Equal(t, mark.String(), opts["until"])
		assert.EqualValues(t, 1000, opts["limit"])
	})

	t.Run("it rejects a malformed high-water mark", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := newChainClient(t, newRPCServer(t), solana.NewWallet().PublicKey())

		// Act
		_, err := client.SignaturesUntil(t.Context(), "not-a-signature", 10)

		// Assert
		assert.ErrorIs(t, err, chain.ErrInvalidSignature)
	})

	t.Run("it wraps RPC failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client, err := chain.NewClient(chain.NewRPC(server.Client(), server.URL), solana.NewWallet().PublicKey().String())
		require.NoError(t, err)

		// Act
		_, err = client.LatestSignatures(t.Context(), 1)

		// Assert
		assert.ErrorIs(t, err, chain.ErrRPCRequestFailed)
	})
}

func TestClientTransaction(t *testing.T) {
	t.Parallel()

	t.Run("it flattens token balances and the fee payer", func(t *testing.T) {
		t.Parallel()

		// Arrange
		staker := solana.NewWallet().PublicKey()
		payment := solana.NewWallet().PublicKey()
		mint := solana.NewWallet().PublicKey()
		sig := randomSignature(t)

		rpcServer := newRPCServer(t)
		rpcServer.on("getTransaction", func([]json.RawMessage) any {
			return transactionResult(t, staker, nil,
				[]map[string]any{tokenBalance(payment, mint, "100")},
				[]map[string]any{tokenBalance(payment, mint, "1100.5")},
			)
		})
		client := newChainClient(t, rpcServer, payment)

		// Act
		tx, err := client.Transaction(t.Context(), sig.String())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staker.String(), tx.FeePayer)
		assert.False(t, tx.Failed)

		pre, ok := chain.BalanceOf(tx.PreTokenBalances, payment.String(), mint.String())
		require.True(t, ok)
		post, ok := chain.BalanceOf(tx.PostTokenBalances, payment.String(), mint.String())
		require.True(t, ok)
		assert.True(t, post.Amount.Sub(pre.Amount).Equal(decimal.RequireFromString("1000.5")))
	})

	t.Run("it marks transactions the chain reported as failed", func(t *testing.T) {
		t.Parallel()

		// Arrange
		payment := solana.NewWallet().PublicKey()
		rpcServer := newRPCServer(t)
		rpcServer.on("getTransaction", func([]json.RawMessage) any {
			return transactionResult(t, solana.NewWallet().PublicKey(),
				map[string]any{"InstructionError": []any{0, "Custom"}}, nil, nil)
		})
		client := newChainClient(t, rpcServer, payment)

		// Act
		tx, err := client.Transaction(t.Context(), randomSignature(t).String())

		// Assert
		require.NoError(t, err)
		assert.True(t, tx.Failed)
	})

	t.Run("it reports missing transactions", func(t *testing.T) {
		t.Parallel()

		// Arrange
		rpcServer := newRPCServer(t)
		rpcServer.on("getTransaction", func([]json.RawMessage) any { return nil })
		client := newChainClient(t, rpcServer, solana.NewWallet().PublicKey())

		// Act
		_, err := client.Transaction(t.Context(), randomSignature(t).String())

		// Assert
		assert.ErrorIs(t, err, chain.ErrTransactionMissing)
	})
}

func TestTokenRawAmount(t *testing.T) {
	t.Parallel()

	tok := chain.Token{Mint: solana.NewWallet().PublicKey(), Decimals: 6}

	t.Run("it converts UI amounts to base units", func(t *testing.T) {
		t.Parallel()

		raw, err := tok.RawAmount(decimal.RequireFromString("400.123456"))

		require.NoError(t, err)
		assert.Equal(t, uint64(400_123_456), raw)
	})

	t.Run("it accepts trailing zeros past the decimals", func(t *testing.T) {
		t.Parallel()

		raw, err := tok.RawAmount(decimal.RequireFromString("1.50000000"))

		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000), raw)
	})

	t.Run("it rejects amounts finer than the decimals", func(t *testing.T) {
		t.Parallel()

		_, err := tok.RawAmount(decimal.RequireFromString("400.1234567"))

		assert.ErrorIs(t, err, chain.ErrInvalidAmount)
	})

	t.Run("it rejects non-positive amounts", func(t *testing.T) {
		t.Parallel()

		_, zeroErr := tok.RawAmount(decimal.Zero)
		_, negErr := tok.RawAmount(decimal.RequireFromString("-1"))

		assert.ErrorIs(t, zeroErr, chain.ErrInvalidAmount)
		assert.ErrorIs(t, negErr, chain.ErrInvalidAmount)
	})
}

func TestStakeTxBuilder(t *testing.T) {
	t.Parallel()

	t.Run("it builds an unsigned transfer paid by the staker", func(t *testing.T) {
		t.Parallel()

		// Arrange
		staker := solana.NewWallet().PublicKey()
		payment := solana.NewWallet().PublicKey()
		mint := solana.NewWallet().PublicKey()

		rpcServer := newRPCServer(t)
		rpcServer.on("getAccountInfo", existingTokenAccount)
		rpcServer.on("getLatestBlockhash", latestBlockhash)

		builder, err := chain.NewStakeTxBuilder(
			chain.NewRPC(http.DefaultClient, rpcServer.URL()),
			chain.Token{Mint: mint, Decimals: 6},
			payment.String(),
		)
		require.NoError(t, err)

		// Act
		encoded, err := builder.Build(t.Context(), staker.String(), decimal.NewFromInt(1000))

		// Assert
		require.NoError(t, err)

		wire, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		tx, err := solana.TransactionFromBytes(wire)
		require.NoError(t, err)

		assert.Equal(t, staker, tx.Message.AccountKeys[0], "staker pays the fee")
		assert.Len(t, tx.Message.Instructions, 1, "destination account exists, only the transfer is needed")
		assert.Len(t, tx.Signatures, 1)
		assert.True(t, tx.Signatures[0].IsZero(), "signature slot is left for the wallet")
	})
}

func TestPayouts(t *testing.T) {
	t.Parallel()

	t.Run("it signs and sends a transfer creating the recipient account when missing", func(t *testing.T) {
		t.Parallel()

		// Arrange
		paymentKey := solana.NewWallet().PrivateKey
		recipient := solana.NewWallet().PublicKey()
		mint := solana.NewWallet().PublicKey()
		sent := make(chan *solana.Transaction, 1)

		rpcServer := newRPCServer(t)
		rpcServer.on("getAccountInfo", missingAccount)
		rpcServer.on("getLatestBlockhash", latestBlockhash)
		rpcServer.on("sendTransaction", func(params []json.RawMessage) any {
			var encoded string
			require.NoError(t, json.Unmarshal(params[0], &encoded))
			wire, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)
			tx, err := solana.TransactionFromBytes(wire)
			require.NoError(t, err)
			sent <- tx
			return tx.Signatures[0].String()
		})

		payouts, err := chain.NewPayouts(
			chain.NewRPC(http.DefaultClient, rpcServer.URL()),
			chain.Token{Mint: mint, Decimals: 6},
			paymentKey.String(),
		)
		require.NoError(t, err)

		// Act
		signature, err := payouts.Transfer(t.Context(), recipient.String(), decimal.NewFromInt(400))

		// Assert
		require.NoError(t, err)
		tx := <-sent
		assert.Equal(t, tx.Signatures[0].String(), signature)
		assert.Len(t, tx.Message.Instructions, 2, "create account + transfer")
		assert.NoError(t, tx.VerifySignatures())
	})
}

func TestAccountNotifier(t *testing.T) {
	t.Parallel()

	t.Run("it signals on account notifications and stops on cancel", func(t *testing.T) {
		t.Parallel()

		// Arrange
		address := solana.NewWallet().PublicKey().String()
		subscribed := make(chan string, 1)
		upgrader := websocket.Upgrader{}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			var req struct {
				Method string `json:"method"`
				Params []any  `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			subscribed <- req.Params[0].(string)

			_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": 1, "result": 42})
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "accountNotification",
				"params":  map[string]any{"subscription": 42, "result": map[string]any{}},
			})

			// Hold the connection until the client goes away
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer server.Close()

		wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
		notifier := chain.NewAccountNotifier(wsURL, address, chain.WithReconnectBackoff(10*time.Millisecond))

		ctx, cancel := context.WithCancel(t.Context())
		notify := make(chan struct{}, 1)
		done := make(chan error, 1)

		// Act
		go func() { done <- notifier.Run(ctx, notify) }()

		// Assert
		assert.Equal(t, address, <-subscribed)
		select {
		case <-notify:
		case <-time.After(2 * time.Second):
			t.Fatal("expected a wake-up signal")
		}

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("notifier did not stop")
		}
	})
}

// Test helpers

func randomSignature(t *testing.T) solana.Signature {
	t.Helper()
	sig, err := solana.NewWallet().PrivateKey.Sign([]byte(t.Name()))
	require.NoError(t, err)
	return sig
}

func newChainClient(t *testing.T, server *rpcServer, address solana.PublicKey) *chain.Client {
	t.Helper()
	client, err := chain.NewClient(chain.NewRPC(http.DefaultClient, server.URL()), address.String())
	require.NoError(t, err)
	return client
}

func tokenBalance(owner, mint solana.PublicKey, ui string) map[string]any {
	return map[string]any{
		"accountIndex": 1,
		"mint":         mint.String(),
		"owner":        owner.String(),
		"programId":    solana.TokenProgramID.String(),
		"uiTokenAmount": map[string]any{
			"amount":         "0",
			"decimals":       6,
			"uiAmountString": ui,
		},
	}
}

// transactionResult builds a getTransaction response around a real wire transaction
func transactionResult(t *testing.T, feePayer solana.PublicKey, txErr any, pre, post []map[string]any) map[string]any {
	t.Helper()

	mint := solana.NewWallet().PublicKey()
	ix := token.NewTransferCheckedInstruction(
		1, 6,
		solana.NewWallet().PublicKey(), mint, solana.NewWallet().PublicKey(),
		feePayer, []solana.PublicKey{},
	).Build()

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(feePayer))
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	wire, err := tx.MarshalBinary()
	require.NoError(t, err)

	if pre == nil {
		pre = []map[string]any{}
	}
	if post == nil {
		post = []map[string]any{}
	}

	return map[string]any{
		"slot":        1,
		"blockTime":   1_700_000_000,
		"transaction": []string{base64.StdEncoding.EncodeToString(wire), "base64"},
		"meta": map[string]any{
			"err":               txErr,
			"fee":               5000,
			"preBalances":       []uint64{},
			"postBalances":      []uint64{},
			"preTokenBalances":  pre,
			"postTokenBalances": post,
			"logMessages":       []string{},
		},
	}
}

func existingTokenAccount([]json.RawMessage) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value": map[string]any{
			"data":       []string{"", "base64"},
			"executable": false,
			"lamports":   2039280,
			"owner":      solana.TokenProgramID.String(),
			"rentEpoch":  0,
		},
	}
}

func missingAccount([]json.RawMessage) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   nil,
	}
}

func latestBlockhash([]json.RawMessage) any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value": map[string]any{
			"blockhash":            solana.HashFromBytes(make([]byte, 32)).String(),
			"lastValidBlockHeight": 100,
		},
	}
}

// rpcServer is a JSON-RPC 2.0 fake dispatching on method name
type rpcServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]func([]json.RawMessage) any
	params   map[string][]json.RawMessage
}

func newRPCServer(t *testing.T) *rpcServer {
	t.Helper()

	s := &rpcServer{
		handlers: map[string]func([]json.RawMessage) any{},
		params:   map[string][]json.RawMessage{},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

func (s *rpcServer) URL() string { return s.server.URL }

func (s *rpcServer) on(method string, fn func([]json.RawMessage) any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

func (s *rpcServer) lastParams(method string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[method]
}

func (s *rpcServer) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     any               `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[req.Method]
	s.params[req.Method] = req.Params
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if ok {
		resp["result"] = handler(req.Params)
	} else {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
