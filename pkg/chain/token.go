package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// Sentinel errors for token transfers
var (
	ErrInvalidKey       = errors.New("invalid private key")
	ErrBuildTransaction = errors.New("failed to build transaction")
	ErrSendTransaction  = errors.New("failed to send transaction")
)

// Token describes the staked SPL mint
type Token struct {
	Mint     solana.PublicKey
	Decimals uint8
}

// NewToken parses the mint address
func NewToken(mint string, decimals uint8) (Token, error) {
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return Token{}, fmt.Errorf("%w: mint: %w", ErrInvalidAddress, err)
	}
	return Token{Mint: pk, Decimals: decimals}, nil
}

// RawAmount converts a UI amount into base units. Amounts finer than the
// mint's decimals are rejected rather than rounded.
func (t Token) RawAmount(amount decimal.Decimal) (uint64, error) {
	raw := amount.Shift(int32(t.Decimals))
	if !raw.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount, t.Decimals)
	}
	if !raw.IsPositive() || !raw.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return raw.BigInt().Uint64(), nil
}

// transferInstructions moves raw units from owner's token account to recipient's,
// creating the recipient's associated account first when it does not exist yet.
func (t Token) transferInstructions(ctx context.Context, client *rpc.Client, feePayer, owner, recipient solana.PublicKey, raw uint64) ([]solana.Instruction, error) {
	source, _, err := solana.FindAssociatedTokenAddress(owner, t.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: source account: %w", ErrBuildTransaction, err)
	}
	destination, _, err := solana.FindAssociatedTokenAddress(recipient, t.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: destination account: %w", ErrBuildTransaction, err)
	}

	var instructions []solana.Instruction

	_, err = client.GetAccountInfo(ctx, destination)
	switch {
	case errors.Is(err, rpc.ErrNotFound):
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(feePayer, recipient, t.Mint).Build())
	case err != nil:
		return nil, fmt.Errorf("%w: getAccountInfo: %w", ErrRPCRequestFailed, err)
	}

	instructions = append(instructions, token.NewTransferCheckedInstruction(
		raw,
		t.Decimals,
		source,
		t.Mint,
		destination,
		owner,
		[]solana.PublicKey{},
	).Build())

	return instructions, nil
}

// Payouts sends staked tokens from the payment wallet back to users
type Payouts struct {
	rpc   *rpc.Client
	token Token
	payer solana.PrivateKey
}

// NewPayouts creates a payout sender signing with the base58 payment key
func NewPayouts(client *rpc.Client, tok Token, paymentKeyBase58 string) (*Payouts, error) {
	key, err := solana.PrivateKeyFromBase58(paymentKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &Payouts{rpc: client, token: tok, payer: key}, nil
}

// PaymentAddress returns the public key paying out
func (p *Payouts) PaymentAddress() string {
	return p.payer.PublicKey().String()
}

// Transfer sends amount tokens to wallet and returns the transaction signature
func (p *Payouts) Transfer(ctx context.Context, wallet string, amount decimal.Decimal) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	raw, err := p.token.RawAmount(amount)
	if err != nil {
		return "", err
	}

	payer := p.payer.PublicKey()
	instructions, err := p.token.transferInstructions(ctx, p.rpc, payer, payer, recipient, raw)
	if err != nil {
		return "", err
	}

	recent, err := p.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("%w: getLatestBlockhash: %w", ErrRPCRequestFailed, err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildTransaction, err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &p.payer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: sign: %w", ErrBuildTransaction, err)
	}

	sig, err := p.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendTransaction, err)
	}
	return sig.String(), nil
}

// StakeTxBuilder prepares unsigned stake transfers for wallets to sign
type StakeTxBuilder struct {
	rpc     *rpc.Client
	token   Token
	payment solana.PublicKey
}

// NewStakeTxBuilder creates a builder sending stakes to paymentAddress
func NewStakeTxBuilder(client *rpc.Client, tok Token, paymentAddress string) (*StakeTxBuilder, error) {
	pk, err := solana.PublicKeyFromBase58(paymentAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: payment address: %w", ErrInvalidAddress, err)
	}
	return &StakeTxBuilder{rpc: client, token: tok, payment: pk}, nil
}

// Build returns a base64 wire transaction with empty signature slots, fee paid by wallet
func (b *StakeTxBuilder) Build(ctx context.Context, wallet string, amount decimal.Decimal) (string, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	raw, err := b.token.RawAmount(amount)
	if err != nil {
		return "", err
	}

	instructions, err := b.token.transferInstructions(ctx, b.rpc, owner, owner, b.payment, raw)
	if err != nil {
		return "", err
	}

	recent, err := b.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("%w: getLatestBlockhash: %w", ErrRPCRequestFailed, err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildTransaction, err)
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	wire, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuildTransaction, err)
	}
	return base64.StdEncoding.EncodeToString(wire), nil
}
