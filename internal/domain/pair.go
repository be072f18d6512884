// Package domain defines core data structures shared across the backtester.
package domain

import (
	"fmt"
	"strings"
)

// Pair two-token trading pair. Base is priced in units of Quote.
type Pair struct {
	// Base token symbol (token0).
	Base string
	// Quote token symbol (token1).
	Quote string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated symbol representation used by exchange APIs.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}

// ParsePair parses a BASE_QUOTE string into a Pair.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q (want BASE_QUOTE)", s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}
