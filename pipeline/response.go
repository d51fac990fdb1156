package pipeline

// CandidateResult reports both semiring scores of one candidate sequence.
// LLR is the best-path score of this candidate minus the best-path score of
// the first candidate (the reference by convention), calibrated when a
// calibration table is configured and requested.
type CandidateResult struct {
	Name     string  `json:"name"`
	BestPath float32 `json:"best_path"`
	AllPaths float32 `json:"all_paths"`
	LLR      float64 `json:"llr"`
}

type Response struct {
	Tid        string            `json:"tid"`
	Basecall   string            `json:"basecall"`
	Score      float32           `json:"score"`
	RunStarts  []int             `json:"run_starts"`
	NMods      int               `json:"n_mods,omitempty"`
	ModsScores []float32         `json:"mods_scores,omitempty"`
	Candidates []CandidateResult `json:"candidates,omitempty"`
	Error      string            `json:"error,omitempty"`
}
