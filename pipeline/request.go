package pipeline

import "nanocall.com/ffd/types"

// Pipeline takes one read request and asynchronously yields the JSON
// response body.
type Pipeline func(request Request) <-chan string

// Candidate is one proposed sequence to score against a window of the
// posterior matrix, optionally with per-position modification categories.
type Candidate struct {
	Name       string `json:"name"`
	Seq        string `json:"seq"`
	ModCats    []int  `json:"mod_cats,omitempty"`
	BlockStart int    `json:"block_start"`
	BlockEnd   int    `json:"block_end"`
}

// Request carries one read's network output: the raw transition log-weight
// matrix, row-major with NBlocks rows, plus optional modification weights
// aligned block by block and candidate sequences to score.
type Request struct {
	Tid           string              `json:"tid"`
	NBlocks       int                 `json:"nblocks"`
	LogProb       []float32           `json:"logprob"`
	ModWeights    []float32           `json:"mod_weights,omitempty"`
	Candidates    []Candidate         `json:"candidates,omitempty"`
	RequestParams types.RequestParams `json:"request_params"`
}
