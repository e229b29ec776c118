package embedding

import (
	"context"
	"testing"
)

func TestStaticReturnsCopies(t *testing.T) {
	gen := Static{Vector: []float32{1, 0, 0}}
	ctx := context.Background()

	doc, err := gen.GenerateEmbedding(ctx, "some note content")
	if err != nil {
		t.Fatalf("GenerateEmbedding failed: %v", err)
	}
	doc[0] = 42

	query, err := gen.GenerateQueryEmbedding(ctx, "a query")
	if err != nil {
		t.Fatalf("GenerateQueryEmbedding failed: %v", err)
	}
	if query[0] != 1 {
		t.Errorf("mutating one result leaked into the next: %v", query)
	}
	if gen.Vector[0] != 1 {
		t.Errorf("mutating a result leaked into the generator: %v", gen.Vector)
	}
}

func TestStaticDimensions(t *testing.T) {
	gen := Static{Vector: []float32{0.5, 0.5, 0, 0}}
	if got := gen.Dimensions(); got != 4 {
		t.Errorf("Dimensions() = %d, want 4", got)
	}
}
