package cost

import "github.com/skylark-radio/playlist-cli/pkg/llm"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Catalog   CatalogRate          `yaml:"catalog" mapstructure:"catalog"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Cache-token multipliers applied when a pricing override leaves them
// unset.
const (
	defaultCacheWriteMul = 1.25
	defaultCacheReadMul  = 0.1
)

// WithTokenPrices returns a copy of r with the token prices replaced.
// Existing cache multipliers are kept, falling back to the defaults
// when unset, so a price override never disables cache-token costing.
func (r ModelRate) WithTokenPrices(input, output float64) ModelRate {
	r.Input = input
	r.Output = output
	if r.CacheWriteMul == 0 {
		r.CacheWriteMul = defaultCacheWriteMul
	}
	if r.CacheReadMul == 0 {
		r.CacheReadMul = defaultCacheReadMul
	}
	return r
}

// CatalogRate holds catalog service pricing.
type CatalogRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of token usage against a model. Unknown
// models cost 0.
func (c *Calculator) Claude(model string, usage llm.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(usage.InputTokens) / 1e6) * rate.Input
	outCost := (float64(usage.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(usage.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(usage.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// CatalogQueries returns the flat cost of n catalog queries.
func (c *Calculator) CatalogQueries(n int) float64 {
	return float64(n) * c.rates.Catalog.PerQuery
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: defaultCacheWriteMul, CacheReadMul: defaultCacheReadMul,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: defaultCacheWriteMul, CacheReadMul: defaultCacheReadMul,
			},
		},
		Catalog: CatalogRate{PerQuery: 0.0002},
	}
}
