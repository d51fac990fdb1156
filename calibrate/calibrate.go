package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Table maps theoretical log-likelihood ratios emitted by the scorer onto
// calibrated ratios estimated from ground-truth reads. Built offline from
// per-read scores of positions where the reference call is known correct.
type Table struct {
	MaxLLR float64   `json:"max_llr"`
	Grid   []float64 `json:"grid"`
	LLR    []float64 `json:"calibrated_llr"`
}

type Config struct {
	MaxLLR     int
	NumPoints  int
	SmoothBW   float64
	MinDensity float64
}

func DefaultConfig() Config {
	return Config{
		MaxLLR:     200,
		NumPoints:  5001,
		SmoothBW:   0.8,
		MinDensity: 5e-8,
	}
}

var ErrNoScores = errors.New("no valid scores to calibrate against")

// LoadTableFromFile reads a previously built calibration table.
func LoadTableFromFile(tablePath string) (*Table, error) {
	buf, err := ioutil.ReadFile(tablePath)
	if err != nil {
		return nil, err
	}
	var t Table
	if err := json.Unmarshal(buf, &t); err != nil {
		return nil, err
	}
	if len(t.Grid) < 2 || len(t.Grid) != len(t.LLR) {
		return nil, fmt.Errorf("table %s has %d grid points and %d values: invalid calibration table",
			tablePath, len(t.Grid), len(t.LLR))
	}
	return &t, nil
}

// New builds a calibration table from LLRs observed at reference-correct
// sites. The alternative distribution is taken as the mirror of the
// reference one, matching how the scorer treats swapped hypotheses.
func New(refLLRs []float64, cfg Config) (*Table, error) {
	clean := make([]float64, 0, len(refLLRs))
	maxLLR := float64(cfg.MaxLLR)
	for _, llr := range refLLRs {
		if math.IsNaN(llr) {
			continue
		}
		if llr > maxLLR {
			llr = maxLLR
		} else if llr < -maxLLR {
			llr = -maxLLR
		}
		clean = append(clean, llr)
	}
	if len(clean) == 0 {
		return nil, ErrNoScores
	}
	if cfg.NumPoints < 3 || cfg.SmoothBW <= 0 {
		return nil, fmt.Errorf("num points %d, bandwidth %g: invalid calibration config", cfg.NumPoints, cfg.SmoothBW)
	}
	sort.Float64s(clean)

	grid := make([]float64, cfg.NumPoints)
	floats.Span(grid, -maxLLR, maxLLR)

	refDens := smoothedDensity(clean, grid, cfg.SmoothBW, cfg.MinDensity)
	// mirror for the alternative hypothesis
	altDens := make([]float64, len(refDens))
	for i := range refDens {
		altDens[i] = refDens[len(refDens)-1-i]
	}

	prob := make([]float64, len(grid))
	for i := range grid {
		prob[i] = refDens[i] / (refDens[i] + altDens[i])
	}
	monotonize(prob)

	llr := make([]float64, len(grid))
	for i, p := range prob {
		llr[i] = math.Log(p / (1 - p))
	}
	return &Table{MaxLLR: maxLLR, Grid: grid, LLR: llr}, nil
}

// Calibrate looks up the calibrated LLR for a raw score, interpolating
// linearly between grid points and clamping at the grid edges.
func (t *Table) Calibrate(llr float64) float64 {
	if math.IsNaN(llr) {
		return llr
	}
	if llr <= t.Grid[0] {
		return t.LLR[0]
	}
	last := len(t.Grid) - 1
	if llr >= t.Grid[last] {
		return t.LLR[last]
	}
	i := sort.SearchFloat64s(t.Grid, llr)
	lo, hi := t.Grid[i-1], t.Grid[i]
	frac := (llr - lo) / (hi - lo)
	return t.LLR[i-1]*(1-frac) + t.LLR[i]*frac
}

// smoothedDensity evaluates a Gaussian-kernel density of the sorted samples
// on the grid, floored at minDens and normalized to unit mass.
func smoothedDensity(sorted, grid []float64, bw, minDens float64) []float64 {
	dens := make([]float64, len(grid))
	norm := 1.0 / (bw * math.Sqrt(2*math.Pi) * float64(len(sorted)))
	cutoff := 5 * bw
	for i, g := range grid {
		lo := sort.SearchFloat64s(sorted, g-cutoff)
		hi := sort.SearchFloat64s(sorted, g+cutoff)
		acc := 0.0
		for _, s := range sorted[lo:hi] {
			z := (s - g) / bw
			acc += math.Exp(-0.5 * z * z)
		}
		dens[i] = acc * norm
		if dens[i] < minDens {
			dens[i] = minDens
		}
	}
	floats.Scale(1/floats.Sum(dens), dens)
	return dens
}

// monotonize forces the reference probability to be non-decreasing in the
// raw LLR by a running maximum, so calibrated LLRs never invert ordering.
func monotonize(prob []float64) {
	for i := 1; i < len(prob); i++ {
		if prob[i] < prob[i-1] {
			prob[i] = prob[i-1]
		}
	}
}
