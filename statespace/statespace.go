package statespace

import (
	"errors"
	"fmt"
	"math"
)

const DefaultAlphabet = "ACGT"

var (
	ErrInvalidStateCount = errors.New("transition width is not 2B(B+1) for any positive base count")
	ErrAlphabetMismatch  = errors.New("alphabet length disagrees with base count implied by matrix width")
	ErrInvalidSymbol     = errors.New("symbol outside canonical alphabet")
)

// NState returns the transition-state width 2B(B+1) for nbase canonical bases.
func NState(nbase int) int {
	return 2 * nbase * (nbase + 1)
}

// NFlipFlop returns the flip-flop state count 2B.
func NFlipFlop(nbase int) int {
	return 2 * nbase
}

// NBaseFromNState recovers the base count B from a transition width n = 2B(B+1).
func NBaseFromNState(nstate int) (int, error) {
	if nstate <= 0 {
		return 0, fmt.Errorf("width %d: %w", nstate, ErrInvalidStateCount)
	}
	nbase := int(math.Floor(math.Sqrt(0.25+float64(nstate)/2.0) - 0.5))
	if nbase < 1 || NState(nbase) != nstate {
		return 0, fmt.Errorf("width %d: %w", nstate, ErrInvalidStateCount)
	}
	return nbase, nil
}

// TransIndex maps a (from, to) flip-flop state pair to its transition column.
// Flip destinations expand over all 2B sources; flop destinations share one
// column block of width 2B addressed by the source state alone. The layout is
// a contract with the upstream weight producer.
func TransIndex(from, to, nbase int) int {
	if to < nbase {
		return to*2*nbase + from
	}
	return 2*nbase*nbase + from
}

// FlipMaskWalk assigns a flip or flop state to each position of a canonical
// symbol sequence: fm[0] = seq[0]; fm[i] = seq[i]+B when seq[i] == fm[i-1],
// else seq[i]. Consecutive identical symbols therefore alternate roles.
func FlipMaskWalk(seq []int, nbase int) ([]int, error) {
	fm := make([]int, len(seq))
	for i, s := range seq {
		if s < 0 || s >= nbase {
			return nil, fmt.Errorf("seq[%d] = %d with %d bases: %w", i, s, nbase, ErrInvalidSymbol)
		}
		if i > 0 && s == fm[i-1] {
			fm[i] = s + nbase
		} else {
			fm[i] = s
		}
	}
	return fm, nil
}

// StayStepIndices converts a canonical symbol sequence into per-position stay
// transition columns and per-boundary step transition columns.
func StayStepIndices(seq []int, nbase int) (stay, step []int, err error) {
	fm, err := FlipMaskWalk(seq, nbase)
	if err != nil {
		return nil, nil, err
	}
	stay = make([]int, len(seq))
	step = make([]int, 0, len(seq))
	for i, s := range fm {
		stay[i] = TransIndex(s, s, nbase)
		if i > 0 {
			step = append(step, TransIndex(fm[i-1], s, nbase))
		}
	}
	return stay, step, nil
}
