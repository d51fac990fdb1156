package statespace

import (
	"fmt"
)

// Alphabet describes the canonical symbols a weight matrix is defined over,
// plus the modified-base categories attached to each canonical base.
type Alphabet struct {
	Symbols      string
	NBase        int
	CanNMods     []int
	ModOffsets   []int
	ModLongNames []string
}

// NewAlphabet builds an Alphabet from a string of distinct symbols and an
// optional per-base modification count vector (nil means no modifications).
func NewAlphabet(symbols string, canNMods []int) (*Alphabet, error) {
	nbase := len(symbols)
	if nbase == 0 {
		return nil, fmt.Errorf("empty alphabet: %w", ErrAlphabetMismatch)
	}
	seen := make(map[rune]bool, nbase)
	for _, r := range symbols {
		if seen[r] {
			return nil, fmt.Errorf("alphabet %q has repeated symbol %q: %w", symbols, r, ErrAlphabetMismatch)
		}
		seen[r] = true
	}
	if canNMods == nil {
		canNMods = make([]int, nbase)
	}
	if len(canNMods) != nbase {
		return nil, fmt.Errorf("mod counts length %d for %d bases: %w", len(canNMods), nbase, ErrAlphabetMismatch)
	}
	offsets := make([]int, nbase+1)
	for i, n := range canNMods {
		if n < 0 {
			return nil, fmt.Errorf("negative mod count for base %d: %w", i, ErrAlphabetMismatch)
		}
		offsets[i+1] = offsets[i] + n
	}
	return &Alphabet{
		Symbols:    symbols,
		NBase:      nbase,
		CanNMods:   canNMods,
		ModOffsets: offsets,
	}, nil
}

// NMods is the total modification category count across all bases.
func (a *Alphabet) NMods() int {
	return a.ModOffsets[a.NBase]
}

// ValidateWidth checks that a matrix of ncol transition columns matches this
// alphabet, including the modification extension when present.
func (a *Alphabet) ValidateWidth(ncol int) error {
	want := NState(a.NBase) + a.NMods()
	if ncol != want {
		return fmt.Errorf("matrix width %d, alphabet %q implies %d: %w",
			ncol, a.Symbols, want, ErrAlphabetMismatch)
	}
	return nil
}

// ModColumn is the column of modification category cat for canonical base in
// an extended matrix of width 2B(B+1)+M.
func (a *Alphabet) ModColumn(base, cat int) (int, error) {
	if base < 0 || base >= a.NBase {
		return 0, fmt.Errorf("base %d: %w", base, ErrInvalidSymbol)
	}
	if cat < 0 || cat >= a.CanNMods[base] {
		return 0, fmt.Errorf("mod category %d for base %d with %d categories: %w",
			cat, base, a.CanNMods[base], ErrInvalidSymbol)
	}
	return NState(a.NBase) + a.ModOffsets[base] + cat, nil
}
