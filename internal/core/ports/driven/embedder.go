package driven

import "context"

// Embedder generates deterministic, unit-L2 embeddings for segment text
// (spec §6.3). It is a pure, external collaborator: the core never assumes
// anything about the model beyond this contract.
type Embedder interface {
	// Encode returns a length-Dimensions() vector for text, with ||v||2 == 1
	// within the tolerance of §8's invariant 7. Deterministic for a given
	// text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed embedding dimension d. d is chosen at
	// store-creation time and never changes without a full rebuild.
	Dimensions() int

	// Model identifies the embedding model in use, for logging and for
	// tagging the vector index.
	Model() string
}
