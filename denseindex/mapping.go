package denseindex

import (
	"encoding/json"
	"fmt"
	"os"
)

// Mapping ties vector positions back to document IDs: position i in the
// vec0 table is Entries[i]. Excluded entries hold zero vectors for texts
// whose embedding failed; searches skip them.
type Mapping struct {
	Dimension    int     `json:"dimension"`
	Model        string  `json:"model"`
	TotalVectors int     `json:"total_vectors"`
	Failed       int     `json:"failed"`
	Entries      []Entry `json:"entries"`
}

// Entry is one position in the mapping.
type Entry struct {
	DocID    string `json:"doc_id"`
	Excluded bool   `json:"excluded,omitempty"`
}

func (m *Mapping) entry(position int) (Entry, bool) {
	if position < 0 || position >= len(m.Entries) {
		return Entry{}, false
	}
	return m.Entries[position], true
}

func loadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	if len(m.Entries) != m.TotalVectors {
		return nil, fmt.Errorf("mapping lists %d entries, header says %d", len(m.Entries), m.TotalVectors)
	}
	return &m, nil
}

func (m *Mapping) save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
