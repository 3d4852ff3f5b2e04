package dexscreener

import (
	"context"
)

// Analysis is the market snapshot of a token across its valid pairs
type Analysis struct {
	Valid     bool
	Name      string
	Symbol    string
	Price     float64 // from the most liquid pair
	Liquidity float64 // summed over pairs
	Volume24h float64 // summed over pairs
	FDV       float64 // from the most liquid pair
}

type validPair struct {
	name, symbol                  string
	price, liquidity, volume, fdv float64
}

// Analyze looks up a token and aggregates its pairs.
// A token without any pair carrying numeric price, liquidity, volume and fdv is invalid.
func (c *Client) Analyze(ctx context.Context, tokenAddress string) (Analysis, error) {
	pairs, err := c.GetPairs(ctx, tokenAddress)
	if err != nil {
		return Analysis{}, err
	}
	return Aggregate(pairs), nil
}

// Aggregate folds the pairs of one token into an Analysis
func Aggregate(pairs []Pair) Analysis {
	valid := filterValid(pairs)
	if len(valid) == 0 {
		return Analysis{}
	}

	best := valid[0]
	var liquidity, volume float64
	for _, p := range valid {
		liquidity += p.liquidity
		volume += p.volume
		if p.liquidity > best.liquidity {
			best = p
		}
	}

	return Analysis{
		Valid:     true,
		Name:      valid[0].name,
		Symbol:    valid[0].symbol,
		Price:     best.price,
		Liquidity: liquidity,
		Volume24h: volume,
		FDV:       best.fdv,
	}
}

func filterValid(pairs []Pair) []validPair {
	out := make([]validPair, 0, len(pairs))
	for _, p := range pairs {
		price, ok1 := number(p.PriceUsd)
		liquidity, ok2 := number(p.Liquidity.USD)
		volume, ok3 := number(p.Volume.H24)
		fdv, ok4 := number(p.FDV)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		out = append(out, validPair{
			name:      p.BaseToken.Name,
			symbol:    p.BaseToken.Symbol,
			price:     price,
			liquidity: liquidity,
			volume:    volume,
			fdv:       fdv,
		})
	}
	return out
}
