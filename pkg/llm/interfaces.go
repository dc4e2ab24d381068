// Package llm implements the retrieval-augmented semantic type classifier.
package llm

import "context"

// ChatProvider generates a completion for a classification prompt.
// Implementations wrap a concrete provider SDK behind one call shape.
type ChatProvider interface {
	Complete(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error)
}

// Embedder turns texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Classification is the model's answer for one column.
// A zero DatatypeID means the classifier could not decide.
type Classification struct {
	DatatypeID string  `json:"datatype_id"`
	Confidence float64 `json:"confidence"` // 0..1
	Reason     string  `json:"reason"`
}

// Request describes one column to classify. Country, Lang and Categories
// narrow retrieval to matching registry entries.
type Request struct {
	FieldName  string
	Samples    []string
	Country    string
	Lang       string
	Categories []string
}
