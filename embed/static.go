package embed

import (
	"context"
	"fmt"
)

// Static is a fixture embedder backed by a lookup table. Tests seed it
// with known text-to-vector pairs and an optional fallback for queries.
type Static struct {
	Vectors   map[string][]float32
	Fallback  []float32
	Dimension int

	// Fail forces every call to return an error, for degradation tests.
	Fail bool
}

// NewStatic builds a fixture embedder with the given dimension.
func NewStatic(dim int) *Static {
	return &Static{
		Vectors:   make(map[string][]float32),
		Dimension: dim,
	}
}

// Set registers a vector for an exact text.
func (s *Static) Set(text string, vec []float32) *Static {
	s.Vectors[text] = vec
	return s
}

func (s *Static) Dim() int { return s.Dimension }

func (s *Static) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.Fail {
		return nil, fmt.Errorf("%w: static embedder set to fail", ErrEmbedding)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := s.Vectors[t]; ok {
			out[i] = v
			continue
		}
		if s.Fallback != nil {
			out[i] = s.Fallback
			continue
		}
		return nil, fmt.Errorf("%w: no vector registered for %q", ErrEmbedding, t)
	}
	return out, nil
}
