package crf

import "errors"

// Width, alphabet and symbol failures reuse the statespace sentinels
// (ErrInvalidStateCount, ErrAlphabetMismatch, ErrInvalidSymbol).
var (
	ErrEmptyInput         = errors.New("zero blocks or zero-length sequence")
	ErrInsufficientBlocks = errors.New("too few blocks for sequence length")
	ErrRangeOutOfBounds   = errors.New("posterior slice bounds exceed matrix")
)
