package sim

import (
	"fmt"
	"strings"
)

// Element is one atomic species inside a layer. Isotope is zero when the
// natural isotope mix is meant.
type Element struct {
	Symbol  string  `json:"symbol" toml:"symbol"`
	Isotope int     `json:"isotope,omitempty" toml:"isotope"`
	Mass    float64 `json:"mass" toml:"mass"`
	// Amount is the relative concentration of this element within its layer.
	Amount float64 `json:"amount" toml:"amount"`
}

// Prefix returns the isotope-qualified symbol, e.g. "35Cl" or "Si".
func (e Element) Prefix() string {
	if e.Isotope > 0 {
		return fmt.Sprintf("%d%s", e.Isotope, e.Symbol)
	}
	return e.Symbol
}

// Params returns the element description line used in target and foils
// files: mass followed by the isotope-qualified symbol.
func (e Element) Params() string {
	return fmt.Sprintf("%0.3f %s", e.Mass, e.Prefix())
}

// AmountParams returns the concentration column used in the indexed
// element rows of target and foils files.
func (e Element) AmountParams() string {
	return fmt.Sprintf("%0.3f", e.Amount)
}

func (e Element) validate() error {
	if strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("element symbol is required")
	}
	if e.Mass <= 0 {
		return fmt.Errorf("element %s: mass must be positive", e.Prefix())
	}
	return nil
}
