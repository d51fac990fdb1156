package crf

import (
	"fmt"

	"nanocall.com/ffd/statespace"
)

// ScoreSequence scores a proposed canonical symbol sequence against the
// posterior slice tpost[tpostStart:tpostEnd]. With allPaths false the result
// is the best single alignment (max-sum); with allPaths true it is the
// log-sum-exp marginal over every alignment of seq to the slice.
func ScoreSequence(tpost []float32, nblocks int, seq []int, tpostStart, tpostEnd int, allPaths bool) (float32, error) {
	if nblocks <= 0 || len(tpost)%nblocks != 0 {
		return 0, fmt.Errorf("matrix of %d entries in %d blocks: %w",
			len(tpost), nblocks, statespace.ErrInvalidStateCount)
	}
	ncol := len(tpost) / nblocks
	nbase, err := statespace.NBaseFromNState(ncol)
	if err != nil {
		return 0, err
	}
	return scoreSeq(tpost, ncol, nbase, seq, nil, tpostStart, tpostEnd, nblocks, allPaths)
}

// ScoreModSequence is ScoreSequence with a modified-base channel: modCats
// gives the modification category proposed at each sequence position and
// canModsOffsets the per-base prefix sums of modification counts
// (canModsOffsets[B] is the total mod count M). The matrix carries T+M
// columns; each step transition additionally collects the log-weight of its
// position's modification category, and the first position's category is
// collected at each stay of the initialization row.
func ScoreModSequence(tpost []float32, nblocks int, seq, modCats, canModsOffsets []int, tpostStart, tpostEnd int, allPaths bool) (float32, error) {
	if nblocks <= 0 || len(tpost)%nblocks != 0 {
		return 0, fmt.Errorf("matrix of %d entries in %d blocks: %w",
			len(tpost), nblocks, statespace.ErrInvalidStateCount)
	}
	ncol := len(tpost) / nblocks
	nbase := len(canModsOffsets) - 1
	if nbase < 1 {
		return 0, fmt.Errorf("mod offsets length %d: %w", len(canModsOffsets), statespace.ErrAlphabetMismatch)
	}
	ntrans := statespace.NState(nbase)
	if ncol != ntrans+canModsOffsets[nbase] {
		return 0, fmt.Errorf("matrix width %d, expected %d+%d: %w",
			ncol, ntrans, canModsOffsets[nbase], statespace.ErrAlphabetMismatch)
	}
	if len(modCats) != len(seq) {
		return 0, fmt.Errorf("%d mod categories for %d positions: %w",
			len(modCats), len(seq), statespace.ErrInvalidSymbol)
	}
	modCols := make([]int, len(seq))
	for i, s := range seq {
		if s < 0 || s >= nbase {
			return 0, fmt.Errorf("seq[%d] = %d: %w", i, s, statespace.ErrInvalidSymbol)
		}
		nmods := canModsOffsets[s+1] - canModsOffsets[s]
		if modCats[i] < 0 || modCats[i] >= nmods {
			return 0, fmt.Errorf("mod_cats[%d] = %d for base %d with %d categories: %w",
				i, modCats[i], s, nmods, statespace.ErrInvalidSymbol)
		}
		modCols[i] = ntrans + canModsOffsets[s] + modCats[i]
	}
	return scoreSeq(tpost, ncol, nbase, seq, modCols, tpostStart, tpostEnd, nblocks, allPaths)
}

// scoreSeq runs the (sequence position x window offset) lattice. modCols is
// nil for canonical scoring, else the absolute matrix column of each
// position's modification category.
func scoreSeq(tpost []float32, ncol, nbase int, seq, modCols []int, tpostStart, tpostEnd, nblocks int, allPaths bool) (float32, error) {
	if len(seq) == 0 {
		return 0, fmt.Errorf("empty sequence: %w", ErrEmptyInput)
	}
	if tpostStart < 0 || tpostStart > tpostEnd || tpostEnd > nblocks {
		return 0, fmt.Errorf("slice [%d, %d) of %d blocks: %w", tpostStart, tpostEnd, nblocks, ErrRangeOutOfBounds)
	}
	nblk := tpostEnd - tpostStart
	nseq := len(seq)
	nwin := nblk - nseq + 2
	if nwin < 1 {
		return 0, fmt.Errorf("%d blocks for %d positions: %w", nblk, nseq, ErrInsufficientBlocks)
	}
	stay, step, err := statespace.StayStepIndices(seq, nbase)
	if err != nil {
		return 0, err
	}

	at := func(blk, col int) float32 {
		return tpost[(tpostStart+blk)*ncol+col]
	}

	prev := make([]float32, nwin)
	curr := make([]float32, nwin)
	// all-stays row for the first symbol
	for w := 1; w < nwin; w++ {
		prev[w] = prev[w-1] + at(w-1, stay[0])
		if modCols != nil {
			prev[w] += at(w-1, modCols[0])
		}
	}
	for i := 1; i < nseq; i++ {
		for w := 0; w < nwin; w++ {
			blk := i + w - 1
			score := prev[w] + at(blk, step[i-1])
			if modCols != nil {
				score += at(blk, modCols[i])
			}
			if w > 0 {
				stayScore := curr[w-1] + at(blk, stay[i])
				if allPaths {
					score = logAddExp(score, stayScore)
				} else if stayScore > score {
					score = stayScore
				}
			}
			curr[w] = score
		}
		prev, curr = curr, prev
	}
	return prev[nwin-1], nil
}
