package ledger

import "github.com/duolog/duolog-server/internal/llm"

// Pricing is the cost in cents per 1M tokens for one model.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing is cents per 1M text tokens, standard tier.
var defaultPricing = map[string]Pricing{
	"gpt-4o":                    {InputPerM: 250, OutputPerM: 1000},
	"gpt-4o-mini":               {InputPerM: 15, OutputPerM: 60},
	"gpt-4.1":                   {InputPerM: 200, OutputPerM: 800},
	"claude-sonnet-4-20250514":  {InputPerM: 300, OutputPerM: 1500},
	"claude-3-5-haiku-20241022": {InputPerM: 80, OutputPerM: 400},
	"claude-opus-4-20250514":    {InputPerM: 1500, OutputPerM: 7500},
}

// ResolvePricing returns the pricing for a model, zero if unknown.
func ResolvePricing(model string) Pricing {
	pricing, ok := defaultPricing[model]
	if !ok {
		return Pricing{}
	}
	return pricing
}

// ComputeCostCents converts token usage to cents for the given pricing.
func ComputeCostCents(usage llm.Usage, pricing Pricing) float64 {
	inputCost := pricing.InputPerM * float64(usage.InputTokens) / 1_000_000.0
	outputCost := pricing.OutputPerM * float64(usage.OutputTokens) / 1_000_000.0
	return inputCost + outputCost
}
