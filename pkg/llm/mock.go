package llm

import (
	"context"
	"hash/fnv"
)

// MockChatProvider returns canned responses for tests.
type MockChatProvider struct {
	Response string
	Err      error
	Calls    int
	// Prompts records what the mock was asked, for assertions.
	Prompts []string
}

func (m *MockChatProvider) Complete(_ context.Context, _, prompt string, _ float64, _ int) (string, error) {
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// MockEmbedder produces deterministic pseudo-embeddings so that identical
// texts land on identical vectors without any network access.
type MockEmbedder struct {
	Dim   int
	Err   error
	Calls int
}

func (m *MockEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	dim := m.Dim
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(inputs))
	for i, text := range inputs {
		vec := make([]float32, dim)
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		seed := h.Sum64()
		for j := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[j] = float32(int64(seed>>33))/float32(1<<31) + 1e-3
		}
		out[i] = vec
	}
	return out, nil
}

var (
	_ ChatProvider = (*MockChatProvider)(nil)
	_ Embedder     = (*MockEmbedder)(nil)
)
