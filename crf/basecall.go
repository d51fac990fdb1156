package crf

import (
	"fmt"

	"nanocall.com/ffd/statespace"
)

// DecodeResult is the output of DecodePosteriors.
type DecodeResult struct {
	Basecall  string
	Score     float32
	Path      []int32
	QPath     []float32
	RunStarts []int
	// ModsScores is a nruns x M row-major matrix of per-call modification
	// log-weights, NaN where no score applies. Nil when no mod weights were
	// supplied.
	ModsScores []float32
	NMods      int
}

// DecodePosteriors runs the Viterbi decode over a transition posterior
// matrix, run-length encodes the state path into a basecall, and, when a
// per-block modification weight matrix is supplied, gathers the modification
// score of each emitted call. modWeights interleaves a canonical channel and
// canNMods[b] modification channels per base, canonical first.
func DecodePosteriors(rPost []float32, nblocks int, alphabet string, modWeights []float32, canNMods []int) (*DecodeResult, error) {
	if nblocks <= 0 {
		return nil, fmt.Errorf("%d blocks: %w", nblocks, ErrEmptyInput)
	}
	if len(rPost)%nblocks != 0 {
		return nil, fmt.Errorf("matrix of %d entries in %d blocks: %w",
			len(rPost), nblocks, statespace.ErrInvalidStateCount)
	}
	ncol := len(rPost) / nblocks
	nbase, err := statespace.NBaseFromNState(ncol)
	if err != nil {
		return nil, err
	}
	if len(alphabet) != nbase {
		return nil, fmt.Errorf("alphabet %q for %d bases: %w", alphabet, nbase, statespace.ErrAlphabetMismatch)
	}

	path := make([]int32, nblocks+1)
	qpath := make([]float32, nblocks+1)
	score, err := Viterbi(rPost, nblocks, path, qpath)
	if err != nil {
		return nil, err
	}

	runVals, runStarts := runLengthEncode(path)
	nruns := len(runVals)
	call := make([]byte, nruns)
	for r, v := range runVals {
		call[r] = alphabet[int(v)%nbase]
	}

	res := &DecodeResult{
		Basecall:  string(call),
		Score:     score,
		Path:      path,
		QPath:     qpath,
		RunStarts: runStarts,
	}
	if modWeights == nil {
		return res, nil
	}

	if len(canNMods) != nbase {
		return nil, fmt.Errorf("mod counts length %d for %d bases: %w",
			len(canNMods), nbase, statespace.ErrAlphabetMismatch)
	}
	// per-base column offsets within modWeights and within the score matrix
	weightCols := make([]int, nbase)
	modOffsets := make([]int, nbase+1)
	wcol := 0
	for b, n := range canNMods {
		weightCols[b] = wcol
		wcol += 1 + n
		modOffsets[b+1] = modOffsets[b] + n
	}
	nmods := modOffsets[nbase]
	if len(modWeights) != nblocks*wcol {
		return nil, fmt.Errorf("mod weight matrix of %d entries, expected %dx%d: %w",
			len(modWeights), nblocks, wcol, statespace.ErrAlphabetMismatch)
	}

	modsScores := make([]float32, nruns*nmods)
	for i := range modsScores {
		modsScores[i] = nan32
	}
	// the first run is never stepped into and keeps NaN scores
	for r := 1; r < nruns; r++ {
		b := int(runVals[r]) % nbase
		blk := runStarts[r] - 1
		for j := 0; j < canNMods[b]; j++ {
			modsScores[r*nmods+modOffsets[b]+j] = modWeights[blk*wcol+weightCols[b]+1+j]
		}
	}
	res.ModsScores = modsScores
	res.NMods = nmods
	return res, nil
}

// runLengthEncode compresses adjacent equal path entries, returning the run
// values and the cumulative start index of each run (with a trailing total).
func runLengthEncode(path []int32) (vals []int32, starts []int) {
	starts = append(starts, 0)
	for i, v := range path {
		if i == 0 || v != path[i-1] {
			if i > 0 {
				starts = append(starts, i)
			}
			vals = append(vals, v)
		}
	}
	starts = append(starts, len(path))
	return vals, starts
}
