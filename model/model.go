package model

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"nanocall.com/ffd/statespace"
)

// Metadata is the sidecar description of a flip-flop model checkpoint: the
// canonical alphabet its weight matrices are defined over and the modified
// bases each canonical base may carry.
type Metadata struct {
	Alphabet     string   `json:"alphabet"`
	CanNMods     []int    `json:"can_nmods"`
	ModLongNames []string `json:"mod_long_names"`
	Stride       int      `json:"stride"`
}

func LoadMetadataFromFile(modelPath string) (Metadata, error) {
	var m Metadata
	buf, err := ioutil.ReadFile(modelPath)
	if err != nil {
		return m, err
	}

	err = json.Unmarshal(buf, &m)
	if err != nil {
		return m, err
	}
	if m.Alphabet == "" {
		m.Alphabet = statespace.DefaultAlphabet
	}
	return m, nil
}

// StateSpace validates the metadata and builds the alphabet the decoding
// core operates on.
func (m Metadata) StateSpace() (*statespace.Alphabet, error) {
	a, err := statespace.NewAlphabet(m.Alphabet, m.CanNMods)
	if err != nil {
		return nil, err
	}
	if len(m.ModLongNames) != a.NMods() {
		return nil, fmt.Errorf("%d mod long names for %d modification categories: %w",
			len(m.ModLongNames), a.NMods(), statespace.ErrAlphabetMismatch)
	}
	a.ModLongNames = m.ModLongNames
	return a, nil
}

// TransWidth is the transition matrix width the model emits, including
// modification channels.
func (m Metadata) TransWidth() int {
	n := statespace.NState(len(m.Alphabet))
	for _, c := range m.CanNMods {
		n += c
	}
	return n
}
