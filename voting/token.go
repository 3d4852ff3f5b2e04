package voting

import (
	"context"
	"errors"

	"github.com/screwyprof/stakevote/pkg/dexscreener"
)

// TokenAnalyzer fetches market data for a token
type TokenAnalyzer interface {
	Analyze(ctx context.Context, tokenAddress string) (dexscreener.Analysis, error)
}

// DexValidator validates tokens against DEX market data
type DexValidator struct {
	analyzer TokenAnalyzer
}

// NewDexValidator creates a TokenValidator backed by analyzer
func NewDexValidator(analyzer TokenAnalyzer) *DexValidator {
	return &DexValidator{analyzer: analyzer}
}

// Validate reports whether the token trades and returns its market snapshot.
// A non-200 answer from the DEX means the token is unknown there.
func (v *DexValidator) Validate(ctx context.Context, tokenAddress string) (TokenInfo, error) {
	analysis, err := v.analyzer.Analyze(ctx, tokenAddress)
	if errors.Is(err, dexscreener.ErrUnexpectedStatus) {
		return TokenInfo{}, nil
	}
	if err != nil {
		return TokenInfo{}, err
	}
	return convertAnalysis(analysis), nil
}

// convertAnalysis converts DEX market data to a domain TokenInfo
func convertAnalysis(a dexscreener.Analysis) TokenInfo {
	return TokenInfo{
		Valid:  a.Valid,
		Name:   a.Name,
		Symbol: a.Symbol,
		Analysis: TokenAnalysis{
			Price:     a.Price,
			Liquidity: a.Liquidity,
			Volume24h: a.Volume24h,
			FDV:       a.FDV,
		},
	}
}
