package crf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"nanocall.com/ffd/statespace"
)

func TestDecodePosteriorsSingleRun(t *testing.T) {
	// three blocks all favoring the flip stay of A collapse to "A"
	nbase := 4
	ncol := statespace.NState(nbase)
	nblocks := 3
	logprob := make([]float32, nblocks*ncol)
	for k := 0; k < nblocks; k++ {
		logprob[k*ncol+statespace.TransIndex(0, 0, nbase)] = 100
	}
	tpost, err := ComputeTransPosteriors(logprob, nblocks, true)
	require.NoError(t, err)

	res, err := DecodePosteriors(tpost, nblocks, "ACGT", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "A", res.Basecall)
	require.Equal(t, []int32{0, 0, 0, 0}, res.Path)
	require.Equal(t, []int{0, 4}, res.RunStarts)
	require.Nil(t, res.ModsScores)
}

func TestDecodePosteriorsHomopolymerRuns(t *testing.T) {
	// flip/flop alternation keeps adjacent identical bases as separate
	// runs: path 0 -> 4 -> 0 -> 1 reads "AAAC"
	nbase := 4
	ncol := statespace.NState(nbase)
	nblocks := 3
	want := []int32{0, 4, 0, 1}
	logprob := make([]float32, nblocks*ncol)
	for k := 1; k <= nblocks; k++ {
		logprob[(k-1)*ncol+statespace.TransIndex(int(want[k-1]), int(want[k]), nbase)] = 100
	}
	tpost, err := ComputeTransPosteriors(logprob, nblocks, true)
	require.NoError(t, err)

	res, err := DecodePosteriors(tpost, nblocks, "ACGT", nil, nil)
	require.NoError(t, err)
	require.Equal(t, want, res.Path)
	require.Equal(t, "AAAC", res.Basecall)
	require.Equal(t, []int{0, 1, 2, 3, 4}, res.RunStarts)
}

func TestDecodePosteriorsModScores(t *testing.T) {
	// constant modification channels surface at every stepped-into run
	// of a covered base, NaN elsewhere
	nbase := 4
	ncol := statespace.NState(nbase)
	nblocks := 3
	want := []int32{0, 4, 0, 1}
	logprob := make([]float32, nblocks*ncol)
	for k := 1; k <= nblocks; k++ {
		logprob[(k-1)*ncol+statespace.TransIndex(int(want[k-1]), int(want[k]), nbase)] = 100
	}
	tpost, err := ComputeTransPosteriors(logprob, nblocks, true)
	require.NoError(t, err)

	canNMods := []int{1, 0, 0, 0}
	modVal := float32(math.Log(0.3))
	// columns per block: A, A-mod, C, G, T
	wcol := 5
	modWeights := make([]float32, nblocks*wcol)
	for k := 0; k < nblocks; k++ {
		modWeights[k*wcol+1] = modVal
	}

	res, err := DecodePosteriors(tpost, nblocks, "ACGT", modWeights, canNMods)
	require.NoError(t, err)
	require.Equal(t, 1, res.NMods)
	require.Len(t, res.ModsScores, 4)
	// first run has no incoming step
	require.True(t, math.IsNaN(float64(res.ModsScores[0])))
	// runs 1 and 2 are A calls, run 3 is C (uncovered)
	require.Equal(t, modVal, res.ModsScores[1])
	require.Equal(t, modVal, res.ModsScores[2])
	require.True(t, math.IsNaN(float64(res.ModsScores[3])))
}

func TestRunLengthEncode(t *testing.T) {
	// the runs rebuild the path exactly and adjacent runs hold different states
	rng := rand.New(rand.NewSource(37))
	for trial := 0; trial < 20; trial++ {
		path := make([]int32, 1+rng.Intn(50))
		for i := range path {
			path[i] = int32(rng.Intn(8))
		}
		vals, starts := runLengthEncode(path)
		require.Equal(t, len(vals)+1, len(starts))
		require.Equal(t, 0, starts[0])
		require.Equal(t, len(path), starts[len(starts)-1])
		rebuilt := make([]int32, 0, len(path))
		for r, v := range vals {
			for i := starts[r]; i < starts[r+1]; i++ {
				rebuilt = append(rebuilt, v)
			}
			if r > 0 {
				require.NotEqual(t, vals[r-1], v)
			}
		}
		if diff := cmp.Diff(path, rebuilt); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodePosteriorsErrors(t *testing.T) {
	_, err := DecodePosteriors(nil, 0, "ACGT", nil, nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	tpost := make([]float32, statespace.NState(4))
	_, err = DecodePosteriors(tpost, 1, "AC", nil, nil)
	require.ErrorIs(t, err, statespace.ErrAlphabetMismatch)

	_, err = DecodePosteriors(tpost, 1, "ACGT", make([]float32, 5), []int{1})
	require.ErrorIs(t, err, statespace.ErrAlphabetMismatch)

	_, err = DecodePosteriors(tpost, 1, "ACGT", make([]float32, 3), []int{1, 0, 0, 0})
	require.ErrorIs(t, err, statespace.ErrAlphabetMismatch)
}
