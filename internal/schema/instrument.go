package schema

import (
	"fmt"
	"strings"
)

// Right describes the option right.
type Right uint16

const (
	RightUnknown Right = iota
	RightCall
	RightPut
)

// String returns the venue representation of the right.
func (r Right) String() string {
	switch r {
	case RightCall:
		return "C"
	case RightPut:
		return "P"
	default:
		return "?"
	}
}

// ParseRight converts a venue right string to a Right.
func ParseRight(s string) Right {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return RightCall
	case "P", "PUT":
		return RightPut
	default:
		return RightUnknown
	}
}

// InstrumentKey is the immutable identity of one option contract.
// Strike and Expiry are stored normalized so two keys built from
// different string spellings of the same contract compare equal.
type InstrumentKey struct {
	Underlying string
	Strike     string
	Right      Right
	Expiry     string
}

// NewInstrumentKey builds a key with normalized strike and expiry.
func NewInstrumentKey(underlying string, strike Price, right Right, expiry string) InstrumentKey {
	return InstrumentKey{
		Underlying: strings.ToUpper(strings.TrimSpace(underlying)),
		Strike:     NormalizeStrike(strike),
		Right:      right,
		Expiry:     NormalizeExpiry(expiry),
	}
}

// ParseInstrumentKey parses the canonical representation produced by
// String, e.g. "SPX_4500.00_C_20260829".
func ParseInstrumentKey(s string) (InstrumentKey, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 4 {
		return InstrumentKey{}, fmt.Errorf("schema: malformed instrument %q", s)
	}
	right := ParseRight(parts[2])
	if right == RightUnknown {
		return InstrumentKey{}, fmt.Errorf("schema: unknown right in %q", s)
	}
	var dollars, cents int64
	if _, err := fmt.Sscanf(parts[1], "%d.%02d", &dollars, &cents); err != nil {
		return InstrumentKey{}, fmt.Errorf("schema: malformed strike in %q", s)
	}
	key := NewInstrumentKey(parts[0], Price(dollars*100+cents), right, parts[3])
	if key.Underlying == "" || key.Expiry == "" {
		return InstrumentKey{}, fmt.Errorf("schema: malformed instrument %q", s)
	}
	return key, nil
}

// StrikePrice returns the strike as a scaled price.
func (k InstrumentKey) StrikePrice() Price {
	var dollars, cents int64
	if _, err := fmt.Sscanf(k.Strike, "%d.%02d", &dollars, &cents); err != nil {
		return 0
	}
	return Price(dollars*100 + cents)
}

// String returns the canonical map-key-friendly representation.
func (k InstrumentKey) String() string {
	return k.Underlying + "_" + k.Strike + "_" + k.Right.String() + "_" + k.Expiry
}

// NormalizeStrike renders a strike price with exactly two decimals.
func NormalizeStrike(strike Price) string {
	return fmt.Sprintf("%d.%02d", int64(strike)/100, int64(strike)%100)
}

// NormalizeExpiry keeps only the digits of an expiry date (YYYYMMDD).
func NormalizeExpiry(expiry string) string {
	var b strings.Builder
	for _, r := range expiry {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
