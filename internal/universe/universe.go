// Package universe validates pair symbols against the recognized 65-pair set.
package universe

import (
	"regexp"
	"strings"

	"github.com/marketintel/engine/internal/domain"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// DefaultPairs is the recognized set of 65 base-asset symbols. In production
// this would be loaded from an exchange-routing config; the set here is a
// tier-1/tier-2 symbol list shaped the same way.
var DefaultPairs = buildDefaultPairs()

func buildDefaultPairs() map[string]bool {
	names := []string{
		"BTC", "ETH", "SOL", "XRP", "BNB", "DOGE", "ADA", "AVAX", "LINK", "TON",
		"DOT", "TRX", "MATIC", "SHIB", "LTC", "BCH", "NEAR", "UNI", "ICP", "APT",
		"ETC", "FIL", "ATOM", "XLM", "HBAR", "ARB", "VET", "OP", "MKR", "INJ",
		"IMX", "STX", "GRT", "RNDR", "AAVE", "ALGO", "SAND", "MANA", "EGLD", "THETA",
		"FTM", "AXS", "XTZ", "EOS", "KAVA", "FLOW", "CHZ", "GALA", "NEO", "XMR",
		"ZEC", "COMP", "DASH", "SNX", "CRV", "1INCH", "ENJ", "BAT", "ZIL", "WAVES",
		"KSM", "QTUM", "OMG", "ANKR", "CELO",
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Validator checks pair symbols against a recognized set.
type Validator struct {
	pairs map[string]bool
}

// NewValidator builds a Validator over the given recognized pair set.
func NewValidator(pairs map[string]bool) *Validator {
	if pairs == nil {
		pairs = DefaultPairs
	}
	return &Validator{pairs: pairs}
}

// Normalize uppercases and trims a raw symbol.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Validate normalizes raw and checks it is both shape-valid and recognized.
func (v *Validator) Validate(raw string) (string, error) {
	sym := Normalize(raw)
	if !symbolPattern.MatchString(sym) {
		return "", domain.NewError(domain.KindValidation, sym, "symbol does not match ^[A-Z0-9]{2,10}$", nil)
	}
	if !v.pairs[sym] {
		return "", domain.NewError(domain.KindValidation, sym, "symbol is not a recognized pair", nil)
	}
	return sym, nil
}

// NormalizeAll validates and de-duplicates a raw symbol list, preserving
// first-seen order. It never truncates; callers enforce count limits.
func (v *Validator) NormalizeAll(raw []string) (ok []string, rejected map[string]error) {
	seen := make(map[string]bool, len(raw))
	rejected = make(map[string]error)
	for _, r := range raw {
		sym, err := v.Validate(r)
		if err != nil {
			rejected[Normalize(r)] = err
			continue
		}
		if seen[sym] {
			continue
		}
		seen[sym] = true
		ok = append(ok, sym)
	}
	return ok, rejected
}
