package crf

import (
	"fmt"
	"math"

	"nanocall.com/ffd/statespace"
)

// forwardStep advances the flip-flop max-sum recurrence by one block.
// row holds the 2B(B+1) transition weights of the block, prev the incoming
// state scores over the 2B flip-flop states, curr the outgoing ones. When tb
// is non-nil the argmax predecessor of each destination is recorded there.
// Comparisons are strict so ties break to the earlier source state.
func forwardStep(row, prev, curr []float32, nbase int, tb []int32) {
	nff := 2 * nbase
	for d := 0; d < nbase; d++ {
		base := d * nff
		best := prev[0] + row[base]
		from := 0
		for s := 1; s < nff; s++ {
			if v := prev[s] + row[base+s]; v > best {
				best = v
				from = s
			}
		}
		curr[d] = best
		if tb != nil {
			tb[d] = int32(from)
		}
	}
	flopBase := 2 * nbase * nbase
	for d := nbase; d < nff; d++ {
		b := d - nbase
		best := prev[b] + row[flopBase+b]
		from := b
		if v := prev[d] + row[flopBase+d]; v > best {
			best = v
			from = d
		}
		curr[d] = best
		if tb != nil {
			tb[d] = int32(from)
		}
	}
}

// flopDest is the single flop destination reachable from a source state.
func flopDest(from, nbase int) int {
	if from < nbase {
		return from + nbase
	}
	return from
}

// ComputeTransPosteriors turns per-block transition log-weights into
// normalized per-block transition posteriors. The quantity is the
// max-semiring forward x backward product (the log-score of the best path
// using each transition at each block), not the sum-product posterior;
// downstream calibration depends on the Viterbi-flavored form.
//
// The returned matrix has the shape of logprob; each row log-sums to zero.
// With wantLog false the buffer holds exponentiated posteriors instead.
func ComputeTransPosteriors(logprob []float32, nblocks int, wantLog bool) ([]float32, error) {
	if nblocks <= 0 {
		return nil, fmt.Errorf("%d blocks: %w", nblocks, ErrEmptyInput)
	}
	if len(logprob)%nblocks != 0 {
		return nil, fmt.Errorf("matrix of %d entries not divisible into %d blocks: %w",
			len(logprob), nblocks, statespace.ErrInvalidStateCount)
	}
	ncol := len(logprob) / nblocks
	nbase, err := statespace.NBaseFromNState(ncol)
	if err != nil {
		return nil, err
	}
	nff := 2 * nbase

	fwd := make([]float32, (nblocks+1)*nff)
	for k := 0; k < nblocks; k++ {
		forwardStep(logprob[k*ncol:(k+1)*ncol], fwd[k*nff:(k+1)*nff], fwd[(k+1)*nff:(k+2)*nff], nbase, nil)
	}

	tpost := make([]float32, len(logprob))
	next := make([]float32, nff)
	curr := make([]float32, nff)
	flopBase := 2 * nbase * nbase
	for k := nblocks - 1; k >= 0; k-- {
		row := logprob[k*ncol : (k+1)*ncol]
		out := tpost[k*ncol : (k+1)*ncol]
		fk := fwd[k*nff : (k+1)*nff]
		for from := 0; from < nff; from++ {
			c := flopBase + from
			to := flopDest(from, nbase)
			best := row[c] + next[to]
			out[c] = fk[from] + best
			for d := 0; d < nbase; d++ {
				c = d*nff + from
				v := row[c] + next[d]
				out[c] = fk[from] + v
				if v > best {
					best = v
				}
			}
			curr[from] = best
		}
		next, curr = curr, next
	}

	for k := 0; k < nblocks; k++ {
		row := tpost[k*ncol : (k+1)*ncol]
		z := logSumExpRow(row)
		for i := range row {
			row[i] -= z
		}
		if !wantLog {
			for i := range row {
				row[i] = float32(math.Exp(float64(row[i])))
			}
		}
	}
	return tpost, nil
}
