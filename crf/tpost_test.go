package crf

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"nanocall.com/ffd/statespace"
)

func randLogProb(rng *rand.Rand, nblocks, nbase int) []float32 {
	m := make([]float32, nblocks*statespace.NState(nbase))
	for i := range m {
		m[i] = float32(rng.NormFloat64() * 3)
	}
	return m
}

func rowLogSumExp64(row []float32) float64 {
	v := make([]float64, len(row))
	for i, x := range row {
		v[i] = float64(x)
	}
	return floats.LogSumExp(v)
}

func TestComputeTransPosteriorsUniform(t *testing.T) {
	// two bases, one block, all-zero weights
	nbase := 2
	ncol := statespace.NState(nbase)
	logprob := make([]float32, ncol)

	tpost, err := ComputeTransPosteriors(logprob, 1, true)
	require.NoError(t, err)
	want := -float32(math.Log(float64(ncol)))
	for _, v := range tpost {
		require.InDelta(t, want, v, 1e-5)
	}

	path := make([]int32, 2)
	qpath := make([]float32, 2)
	score, err := Viterbi(tpost, 1, path, qpath)
	require.NoError(t, err)
	require.InDelta(t, want, score, 1e-5)
	require.Equal(t, []int32{0, 0}, path)
	require.True(t, math.IsNaN(float64(qpath[0])))
	require.InDelta(t, want, qpath[1], 1e-5)
}

func TestComputeTransPosteriorsRowsNormalized(t *testing.T) {
	// every row of the log posterior log-sums to zero
	rng := rand.New(rand.NewSource(11))
	for _, nbase := range []int{2, 4} {
		nblocks := 20
		tpost, err := ComputeTransPosteriors(randLogProb(rng, nblocks, nbase), nblocks, true)
		require.NoError(t, err)
		ncol := statespace.NState(nbase)
		for k := 0; k < nblocks; k++ {
			require.InDelta(t, 0, rowLogSumExp64(tpost[k*ncol:(k+1)*ncol]), 1e-4)
		}
	}
}

func TestComputeTransPosteriorsExpRoundTrip(t *testing.T) {
	// the non-log output is exactly the exponential of the log output,
	// and renormalizing an already normalized matrix changes nothing
	rng := rand.New(rand.NewSource(13))
	nblocks := 8
	logprob := randLogProb(rng, nblocks, 4)

	logOut, err := ComputeTransPosteriors(logprob, nblocks, true)
	require.NoError(t, err)
	expOut, err := ComputeTransPosteriors(logprob, nblocks, false)
	require.NoError(t, err)
	for i := range logOut {
		require.InDelta(t, math.Exp(float64(logOut[i])), expOut[i], 1e-6)
	}

	ncol := statespace.NState(4)
	for k := 0; k < nblocks; k++ {
		row := logOut[k*ncol : (k+1)*ncol]
		require.InDelta(t, 0, logSumExpRow(row), 1e-4)
	}
}

func TestComputeTransPosteriorsErrors(t *testing.T) {
	_, err := ComputeTransPosteriors(nil, 0, true)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = ComputeTransPosteriors(make([]float32, 10), 1, true)
	require.ErrorIs(t, err, statespace.ErrInvalidStateCount)

	_, err = ComputeTransPosteriors(make([]float32, 13), 2, true)
	require.ErrorIs(t, err, statespace.ErrInvalidStateCount)
}

func TestLogAddExpStable(t *testing.T) {
	inf := float32(math.Inf(-1))
	require.Equal(t, float32(5), logAddExp(inf, 5))
	require.Equal(t, float32(5), logAddExp(5, inf))
	require.InDelta(t, math.Log(2), logAddExp(0, 0), 1e-6)
	// the max dominates far-apart operands without overflow
	require.InDelta(t, 1000, logAddExp(1000, -1000), 1e-4)
}
