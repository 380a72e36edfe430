package llm

// ModelPricing gives a model's USD cost per 1M input and output tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultPricing is the static table adapters consult to populate
// Usage.CostUSD. Unknown models price at zero rather than failing the
// call: cost accounting degrades gracefully, it never blocks a run.
var defaultPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":              {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// Cost computes the USD cost of an input/output token pair for model,
// looking up defaultPricing (zero cost for unrecognized models).
func Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := defaultPricing[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1_000_000.0)*p.InputPer1M + (float64(outputTokens)/1_000_000.0)*p.OutputPer1M
}
