package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// GoldenQuery is one golden retrieval case.
type GoldenQuery struct {
	Query       string   `json:"query"`
	RelevantIDs []string `json:"relevant_ids"`
	Category    string   `json:"category,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Dataset is a named collection of golden queries.
type Dataset struct {
	Name    string        `json:"name"`
	Queries []GoldenQuery `json:"queries"`
}

// LoadDataset reads a golden dataset from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var d Dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return &d, nil
}

// Validate rejects datasets the runner cannot score.
func (d *Dataset) Validate() error {
	if len(d.Queries) == 0 {
		return fmt.Errorf("no queries")
	}
	for i, q := range d.Queries {
		if q.Query == "" {
			return fmt.Errorf("query %d: empty query text", i)
		}
		if len(q.RelevantIDs) == 0 {
			return fmt.Errorf("query %d (%q): no relevant IDs", i, q.Query)
		}
	}
	return nil
}

// SampleDataset returns a small built-in golden set over the kind of
// corpus the ingester produces. It exists so `lexlink eval` runs out of
// the box; real benchmarks load their own JSON.
func SampleDataset() *Dataset {
	return &Dataset{
		Name: "sample-misrepresentation",
		Queries: []GoldenQuery{
			{
				Query:       "damages for misrepresentation inducing a contract",
				RelevantIDs: []string{"misrepresentation_act_s2"},
				Category:    "statute-lookup",
			},
			{
				Query:       "how have courts construed section 2(1) of the Misrepresentation Act",
				RelevantIDs: []string{"misrepresentation_act_s2", "2013_sgca_36_para_158"},
				Category:    "interpretation",
			},
			{
				Query:       "notice periods for employees with silent contracts",
				RelevantIDs: []string{"employment_act_s18"},
				Category:    "statute-lookup",
			},
		},
	}
}
