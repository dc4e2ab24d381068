package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// maxQuerySamples caps how many sample values enter the query text.
const maxQuerySamples = 5

// Retriever finds the registry entries nearest to a column description.
type Retriever struct {
	store    Store
	embedder Embedder
	topK     int
	logger   *zap.Logger
}

// NewRetriever creates a retriever over an indexed store.
func NewRetriever(store Store, embedder Embedder, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 10
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		topK:     topK,
		logger:   logger.Named("retriever"),
	}
}

// QueryText builds the short text that is embedded for a lookup: the field
// name and a handful of sample values.
func QueryText(fieldName string, samples []string) string {
	if len(samples) > maxQuerySamples {
		samples = samples[:maxQuerySamples]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "field: %s\n", fieldName)
	if len(samples) > 0 {
		fmt.Fprintf(&sb, "sample values: %s\n", strings.Join(samples, ", "))
	}
	return sb.String()
}

// Retrieve embeds the request and returns its nearest registry entries.
// When country/lang/category filters are present the search widens to 3x
// the requested depth and the surplus is filtered away by metadata, so the
// caller still receives up to topK relevant hits.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]SearchHit, error) {
	vectors, err := r.embedder.Embed(ctx, []string{QueryText(req.FieldName, req.Samples)})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}

	filtered := req.Country != "" || req.Lang != "" || len(req.Categories) > 0
	depth := r.topK
	if filtered {
		depth = r.topK * 3
	}

	hits := r.store.Search(vectors[0], depth)
	if filtered {
		hits = filterHits(hits, req)
		if len(hits) > r.topK {
			hits = hits[:r.topK]
		}
	}

	r.logger.Debug("retrieved entries",
		zap.String("field", req.FieldName),
		zap.Int("hits", len(hits)))
	return hits, nil
}

// filterHits keeps hits whose comma-separated metadata lists contain the
// requested values. An entry with no value on a dimension passes it.
func filterHits(hits []SearchHit, req Request) []SearchHit {
	out := hits[:0:0]
	for _, h := range hits {
		if req.Country != "" && !listContains(h.Metadata["country"], req.Country) {
			continue
		}
		if req.Lang != "" && !listContains(h.Metadata["langs"], req.Lang) {
			continue
		}
		if len(req.Categories) > 0 && !anyListContains(h.Metadata["categories"], req.Categories) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func listContains(csv, want string) bool {
	if csv == "" {
		return true
	}
	for _, item := range strings.Split(csv, ",") {
		if strings.EqualFold(strings.TrimSpace(item), want) {
			return true
		}
	}
	return false
}

func anyListContains(csv string, wants []string) bool {
	for _, w := range wants {
		if listContains(csv, w) {
			return true
		}
	}
	return false
}
