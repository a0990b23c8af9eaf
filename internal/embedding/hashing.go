package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/thebtf/feeddedup/pkg/similarity"
)

// HashingProvider is a deterministic, offline provider. Each term of the text
// is hashed into one of dim buckets with a hash-derived sign (the feature
// hashing trick), and adjacent term pairs are added at half weight.
//
// It captures lexical overlap only, not meaning, but identical texts always
// get identical vectors and the vector is never zero.
type HashingProvider struct {
	dim int
}

// NewHashingProvider creates a hashing provider producing dim-length vectors.
// A non-positive dim selects 512.
func NewHashingProvider(dim int) *HashingProvider {
	if dim <= 0 {
		dim = 512
	}
	return &HashingProvider{dim: dim}
}

// Embed returns the hashed term vector of text.
func (p *HashingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dim)

	terms := similarity.Terms(text)
	for i, term := range terms {
		p.add(vec, term, 1)
		if i > 0 {
			p.add(vec, terms[i-1]+" "+term, 0.5)
		}
	}

	// Texts without terms, or whose terms cancel out, fall back to the raw bytes.
	if similarity.Magnitude(vec) == 0 {
		idx, _ := p.bucket(text)
		vec[idx] = 1
	}
	return vec, nil
}

// Dimensions returns the vector length.
func (p *HashingProvider) Dimensions() int { return p.dim }

// Model identifies the provider and its dimension.
func (p *HashingProvider) Model() string { return fmt.Sprintf("hashing-%d", p.dim) }

func (p *HashingProvider) add(vec []float32, feature string, weight float32) {
	idx, negative := p.bucket(feature)
	if negative {
		weight = -weight
	}
	vec[idx] += weight
}

func (p *HashingProvider) bucket(feature string) (int, bool) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	return int(sum % uint64(p.dim)), sum>>63 == 1
}
