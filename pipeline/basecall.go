package pipeline

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"nanocall.com/ffd/calibrate"
	"nanocall.com/ffd/crf"
	"nanocall.com/ffd/logger"
	"nanocall.com/ffd/model"
	"nanocall.com/ffd/statespace"
	"nanocall.com/ffd/types"
)

type BasecallParams struct {
	ModelPath       string              `json:"model_path"`
	CalibrationPath string              `json:"calibration_path"`
	Configuration   types.Configuration `json:"configuration"`
}

func GetBasecallParams(rootPath string, cfg types.Configuration) BasecallParams {
	params := BasecallParams{
		ModelPath:     path.Join(rootPath, cfg.Params.Basecall.ModelMetadata),
		Configuration: cfg,
	}
	if cfg.Params.Basecall.CalibrationTable != "" {
		params.CalibrationPath = path.Join(rootPath, cfg.Params.Basecall.CalibrationTable)
	}
	return params
}

// Basecall builds the read pipeline: posterior normalization, Viterbi
// decode, basecall reduction, and candidate scoring, configured by one run
// configuration.
func Basecall(params BasecallParams) (Pipeline, error) {
	ffLogger := logger.NewLogger("Basecall pipeline")
	errLogger := ffLogger.With().Caller().Logger()
	ffLogger.Info().
		Interface("params", params).
		Msg("Starting basecall pipeline (see parameters in 'params' field)")

	meta, err := model.LoadMetadataFromFile(params.ModelPath)
	if err != nil {
		errLogger.Err(err).Str("model_path", params.ModelPath).Msg("Failed to load model metadata")
		return nil, err
	}
	alphabet, err := meta.StateSpace()
	if err != nil {
		errLogger.Err(err).Str("alphabet", meta.Alphabet).Msg("Invalid model state space")
		return nil, err
	}

	var calib *calibrate.Table
	if params.CalibrationPath != "" {
		calib, err = calibrate.LoadTableFromFile(params.CalibrationPath)
		if err != nil {
			errLogger.Err(err).Str("calibration_path", params.CalibrationPath).Msg("Failed to load calibration table")
			return nil, err
		}
	}

	cfg := params.Configuration
	return func(request Request) <-chan string {
		responseChan := make(chan string)
		pplnLog := ffLogger.With().Str("tid", request.Tid).Logger()
		pplnLog.Info().Msg("Started basecall pipeline")

		go func() {
			defer close(responseChan)
			response := processRead(request, cfg, alphabet, calib, &pplnLog)
			buf, err := json.Marshal(response)
			if err != nil {
				pplnLog.Err(err).Str("tid", request.Tid).Msg("Failed to marshall response")
			}
			pplnLog.Info().Msg("Finished basecall pipeline")
			responseChan <- string(buf)
		}()

		return responseChan
	}, nil
}

func processRead(
	request Request,
	cfg types.Configuration,
	alphabet *statespace.Alphabet,
	calib *calibrate.Table,
	pplnLog *zerolog.Logger,
) Response {
	response := Response{Tid: request.Tid}
	fail := func(err error) Response {
		pplnLog.Err(err).Msg("Read processing failed")
		response.Error = err.Error()
		return response
	}

	tpost, err := crf.ComputeTransPosteriors(request.LogProb, request.NBlocks, true)
	if err != nil {
		return fail(err)
	}

	var modWeights []float32
	var canNMods []int
	if cfg.CheckFeature(types.ModCallsFeature) && request.ModWeights != nil {
		modWeights = request.ModWeights
		canNMods = alphabet.CanNMods
	}
	decoded, err := crf.DecodePosteriors(tpost, request.NBlocks, alphabet.Symbols, modWeights, canNMods)
	if err != nil {
		return fail(err)
	}
	response.Basecall = decoded.Basecall
	response.Score = decoded.Score
	response.RunStarts = decoded.RunStarts
	response.ModsScores = decoded.ModsScores
	response.NMods = decoded.NMods

	if cfg.CheckFeature(types.CandidatesFeature) && len(request.Candidates) > 0 {
		response.Candidates, err = scoreCandidates(request, tpost, alphabet, calib)
		if err != nil {
			return fail(err)
		}
	}
	return response
}

func scoreCandidates(
	request Request,
	tpost []float32,
	alphabet *statespace.Alphabet,
	calib *calibrate.Table,
) ([]CandidateResult, error) {
	symbolIndex := make(map[rune]int, alphabet.NBase)
	for i, r := range alphabet.Symbols {
		symbolIndex[r] = i
	}

	// candidates with modification categories score against the matrix
	// extended by the modification channels
	var extended []float32
	needExtended := false
	for _, cand := range request.Candidates {
		if cand.ModCats != nil {
			needExtended = true
			break
		}
	}
	if needExtended {
		var err error
		extended, err = extendWithModChannels(tpost, request.ModWeights, request.NBlocks, alphabet)
		if err != nil {
			return nil, err
		}
	}

	results := make([]CandidateResult, 0, len(request.Candidates))
	var refBest float32
	for i, cand := range request.Candidates {
		seq := make([]int, 0, len(cand.Seq))
		for _, r := range cand.Seq {
			idx, ok := symbolIndex[r]
			if !ok {
				return nil, fmt.Errorf("candidate %q symbol %q: %w", cand.Name, r, statespace.ErrInvalidSymbol)
			}
			seq = append(seq, idx)
		}

		var best, all float32
		var err error
		if cand.ModCats != nil {
			best, err = crf.ScoreModSequence(extended, request.NBlocks, seq, cand.ModCats,
				alphabet.ModOffsets, cand.BlockStart, cand.BlockEnd, false)
			if err == nil {
				all, err = crf.ScoreModSequence(extended, request.NBlocks, seq, cand.ModCats,
					alphabet.ModOffsets, cand.BlockStart, cand.BlockEnd, true)
			}
		} else {
			best, err = crf.ScoreSequence(tpost, request.NBlocks, seq, cand.BlockStart, cand.BlockEnd, false)
			if err == nil {
				all, err = crf.ScoreSequence(tpost, request.NBlocks, seq, cand.BlockStart, cand.BlockEnd, true)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("candidate %q: %w", cand.Name, err)
		}

		if i == 0 {
			refBest = best
		}
		llr := float64(best - refBest)
		if calib != nil && request.RequestParams.Calibrate {
			llr = calib.Calibrate(llr)
		}
		results = append(results, CandidateResult{
			Name:     cand.Name,
			BestPath: best,
			AllPaths: all,
			LLR:      llr,
		})
	}
	return results, nil
}

// extendWithModChannels widens the posterior matrix with one column per
// modification category, gathered from the per-base interleaved modification
// weight matrix.
func extendWithModChannels(tpost, modWeights []float32, nblocks int, alphabet *statespace.Alphabet) ([]float32, error) {
	nmods := alphabet.NMods()
	if nmods == 0 || modWeights == nil {
		return nil, fmt.Errorf("modification scoring without modification channels: %w", statespace.ErrAlphabetMismatch)
	}
	ntrans := statespace.NState(alphabet.NBase)
	if len(tpost) != nblocks*ntrans {
		return nil, fmt.Errorf("posterior matrix of %d entries for %d blocks: %w",
			len(tpost), nblocks, statespace.ErrInvalidStateCount)
	}
	wcol := alphabet.NBase + nmods
	if len(modWeights) != nblocks*wcol {
		return nil, fmt.Errorf("mod weight matrix of %d entries, expected %dx%d: %w",
			len(modWeights), nblocks, wcol, statespace.ErrAlphabetMismatch)
	}

	ncol := ntrans + nmods
	out := make([]float32, nblocks*ncol)
	for k := 0; k < nblocks; k++ {
		copy(out[k*ncol:k*ncol+ntrans], tpost[k*ntrans:(k+1)*ntrans])
		wbase := 0
		for b := 0; b < alphabet.NBase; b++ {
			for j := 0; j < alphabet.CanNMods[b]; j++ {
				out[k*ncol+ntrans+alphabet.ModOffsets[b]+j] = modWeights[k*wcol+wbase+1+j]
			}
			wbase += 1 + alphabet.CanNMods[b]
		}
	}
	return out, nil
}
