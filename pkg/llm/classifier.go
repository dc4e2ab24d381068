package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/retry"
)

// State of the classifier lifecycle.
type State int32

const (
	StateIdle State = iota
	StateIndexBuilding
	StateReady
	StateClassifying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIndexBuilding:
		return "index_building"
	case StateReady:
		return "ready"
	case StateClassifying:
		return "classifying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ClassifierConfig tunes the RAG classifier.
type ClassifierConfig struct {
	RegistryPath string
	TopK         int           // retrieval depth, default 10
	MaxRetries   int           // per LLM/embedding call, default 3
	BaseDelay    time.Duration // backoff seed, grows as base*2^attempt
	Timeout      time.Duration // per-request timeout, default 30s
	Temperature  float64
	MaxTokens    int
	// EmbedBatch is how many registry entries are embedded per request.
	EmbedBatch int
}

func (c *ClassifierConfig) withDefaults() ClassifierConfig {
	out := *c
	if out.TopK <= 0 {
		out.TopK = 10
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = time.Second
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = 512
	}
	if out.EmbedBatch <= 0 {
		out.EmbedBatch = 64
	}
	return out
}

// Classifier answers "what semantic type is this column" for columns the
// rule engine could not claim. It retrieves nearby registry entries by
// embedding similarity and asks a chat model to choose among them.
type Classifier struct {
	cfg       ClassifierConfig
	chat      ChatProvider
	embedder  Embedder
	store     Store
	retriever *Retriever
	logger    *zap.Logger

	state atomic.Int32
}

// NewClassifier wires a classifier from its collaborators. The index is not
// built yet; call BuildIndex before Classify.
func NewClassifier(cfg ClassifierConfig, chat ChatProvider, embedder Embedder, store Store, logger *zap.Logger) *Classifier {
	cfg = cfg.withDefaults()
	log := logger.Named("classifier")
	return &Classifier{
		cfg:       cfg,
		chat:      chat,
		embedder:  embedder,
		store:     store,
		retriever: NewRetriever(store, embedder, cfg.TopK, log),
		logger:    log,
	}
}

// State returns the current lifecycle state.
func (c *Classifier) State() State {
	return State(c.state.Load())
}

func (c *Classifier) setState(s State) {
	c.state.Store(int32(s))
}

// BuildIndex loads the registry, embeds every entry's canonical text and
// fills the vector store. Prior store contents are cleared first so a
// rebuild never leaves stale entries behind. A failed build is terminal.
func (c *Classifier) BuildIndex(ctx context.Context) error {
	c.setState(StateIndexBuilding)

	entries, err := LoadRegistry(c.cfg.RegistryPath)
	if err != nil {
		c.setState(StateFailed)
		return err
	}

	c.store.Clear()

	retryCfg := c.retryConfig()
	for start := 0; start < len(entries); start += c.cfg.EmbedBatch {
		end := start + c.cfg.EmbedBatch
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Textualize()
		}

		vectors, err := retry.DoWithResultIf(ctx, retryCfg, func() ([][]float32, error) {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
			return c.embedder.Embed(callCtx, texts)
		})
		if err != nil {
			c.setState(StateFailed)
			return fmt.Errorf("embed registry batch %d-%d: %w", start, end, err)
		}

		docs := make([]Document, len(batch))
		for i := range batch {
			docs[i] = Document{
				ID:        batch[i].ID,
				Embedding: vectors[i],
				Metadata:  batch[i].Metadata(),
			}
		}
		c.store.Add(docs)
	}

	c.setState(StateReady)
	c.logger.Info("index built",
		zap.Int("entries", c.store.Len()),
		zap.String("registry", c.cfg.RegistryPath))
	return nil
}

// Classify returns the model's answer for one column. It never fails the
// scan: after retries are exhausted the result is a null classification
// carrying the error text as its reason.
func (c *Classifier) Classify(ctx context.Context, req Request) *Classification {
	if c.State() != StateReady {
		return &Classification{Reason: apperrors.ErrNotReady.Error()}
	}

	c.setState(StateClassifying)
	defer c.setState(StateReady)

	result, err := c.classify(ctx, req)
	if err != nil {
		c.logger.Warn("classification failed",
			zap.String("field", req.FieldName),
			zap.Error(err))
		return &Classification{Reason: err.Error()}
	}
	return result
}

func (c *Classifier) classify(ctx context.Context, req Request) (*Classification, error) {
	retryCfg := c.retryConfig()

	hits, err := retry.DoWithResultIf(ctx, retryCfg, func() ([]SearchHit, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return c.retriever.Retrieve(callCtx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(hits) == 0 {
		return &Classification{Reason: "no registry entries matched the filters"}, nil
	}

	prompt := BuildPrompt(req.FieldName, req.Samples, hits)

	result, err := retry.DoWithResultIf(ctx, retryCfg, func() (*Classification, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		raw, err := c.chat.Complete(callCtx, systemPrompt, prompt, c.cfg.Temperature, c.cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		parsed, err := ParseJSONResponse[Classification](raw)
		if err != nil {
			// Malformed model output is worth another attempt; a fresh
			// completion often parses fine.
			return nil, &transientError{err: fmt.Errorf("parse response: %w", err)}
		}
		return &parsed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	normalize(result)
	return result, nil
}

// transientError marks an error as retryable regardless of its text, for
// retry.IsRetryable.
type transientError struct {
	err error
}

func (e *transientError) Error() string     { return e.err.Error() }
func (e *transientError) Unwrap() error     { return e.err }
func (e *transientError) IsRetryable() bool { return true }

// retryConfig maps the classifier settings onto exponential backoff with
// delays of base, base*2, base*4 and so on.
func (c *Classifier) retryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:   c.cfg.MaxRetries,
		InitialDelay: c.cfg.BaseDelay,
		MaxDelay:     c.cfg.BaseDelay * 64,
		Multiplier:   2,
		JitterFactor: 0,
	}
}

// normalize validates the parsed model answer in place: the literal string
// "null" counts as no answer and confidence is clamped to [0, 1].
func normalize(r *Classification) {
	if r.DatatypeID == "null" || r.DatatypeID == "none" {
		r.DatatypeID = ""
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.DatatypeID == "" {
		r.Confidence = 0
	}
}
