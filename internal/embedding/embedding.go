// Package embedding defines the contract for the embedding provider the
// storage layer collaborates with. The provider itself lives outside this
// module; adapters only ever see precomputed vectors.
package embedding

import "context"

// Generator produces fixed-length embedding vectors. Implementations may
// distinguish document and query embeddings (some providers train separate
// projections); symmetric providers return the same vector from both.
type Generator interface {
	// GenerateEmbedding embeds note content for storage.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// GenerateQueryEmbedding embeds a search query.
	GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector length this generator produces.
	Dimensions() int
}

// Static is a deterministic Generator for tests: every call returns a copy
// of the same fixed vector.
type Static struct {
	Vector []float32
}

// GenerateEmbedding returns a copy of the fixed vector.
func (s Static) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	out := make([]float32, len(s.Vector))
	copy(out, s.Vector)
	return out, nil
}

// GenerateQueryEmbedding returns a copy of the fixed vector.
func (s Static) GenerateQueryEmbedding(ctx context.Context, text string) ([]float32, error) {
	return s.GenerateEmbedding(ctx, text)
}

// Dimensions reports the fixed vector's length.
func (s Static) Dimensions() int { return len(s.Vector) }
