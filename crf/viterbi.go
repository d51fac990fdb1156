package crf

import (
	"fmt"

	"nanocall.com/ffd/statespace"
)

// Viterbi finds the most likely flip-flop state path through a transition
// log-posterior matrix. path and qpath are caller-owned buffers of at least
// nblocks+1 entries; path receives the state sequence and qpath the
// log-posterior of each taken transition, with qpath[0] left NaN by contract.
// The best final score is returned.
func Viterbi(tpost []float32, nblocks int, path []int32, qpath []float32) (float32, error) {
	if nblocks <= 0 {
		return 0, fmt.Errorf("%d blocks: %w", nblocks, ErrEmptyInput)
	}
	if len(tpost)%nblocks != 0 {
		return 0, fmt.Errorf("matrix of %d entries not divisible into %d blocks: %w",
			len(tpost), nblocks, statespace.ErrInvalidStateCount)
	}
	ncol := len(tpost) / nblocks
	nbase, err := statespace.NBaseFromNState(ncol)
	if err != nil {
		return 0, err
	}
	if len(path) < nblocks+1 || len(qpath) < nblocks+1 {
		return 0, fmt.Errorf("output buffers shorter than %d: %w", nblocks+1, ErrRangeOutOfBounds)
	}
	nff := 2 * nbase

	prev := make([]float32, nff)
	curr := make([]float32, nff)
	tb := make([]int32, nblocks*nff)
	for k := 0; k < nblocks; k++ {
		forwardStep(tpost[k*ncol:(k+1)*ncol], prev, curr, nbase, tb[k*nff:(k+1)*nff])
		prev, curr = curr, prev
	}

	// after the final swap prev holds the last scores
	best := prev[0]
	bestIdx := 0
	for d := 1; d < nff; d++ {
		if prev[d] > best {
			best = prev[d]
			bestIdx = d
		}
	}

	path[nblocks] = int32(bestIdx)
	for k := nblocks; k >= 1; k-- {
		path[k-1] = tb[(k-1)*nff+int(path[k])]
	}
	qpath[0] = nan32
	for k := 1; k <= nblocks; k++ {
		c := statespace.TransIndex(int(path[k-1]), int(path[k]), nbase)
		qpath[k] = tpost[(k-1)*ncol+c]
	}
	return best, nil
}
