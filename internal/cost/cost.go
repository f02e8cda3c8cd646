// Package cost estimates recognition spend and formats it for display.
package cost

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Pricing is the per-million-token price of the recognition model.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Estimate returns the base-currency cost of one call.
func (p Pricing) Estimate(promptTokens, completionTokens int) float64 {
	in := float64(promptTokens) / 1_000_000 * p.InputPerMillion
	out := float64(completionTokens) / 1_000_000 * p.OutputPerMillion
	return in + out
}

var grouped = message.NewPrinter(language.English)

// Format renders amount as "{base}{amount:.4f} ({local}{int(amount*rate):,})".
// The converted figure is truncated toward zero, not rounded.
func Format(amount, rate float64, baseSymbol, localSymbol string) string {
	local := int64(amount * rate)
	return fmt.Sprintf("%s%.4f (%s%s)", baseSymbol, amount, localSymbol, grouped.Sprintf("%d", local))
}
