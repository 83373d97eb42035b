package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Dimension is fixed at model-configuration time. Every stored and query
// vector carries exactly this many components.
const Dimension = 384

const (
	batchChunkSize = 10
	batchPause     = 100 * time.Millisecond

	warmupText = "warmup"

	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// ErrModelNotReady means the embedding model could not be loaded for this
// call. Callers surface it as a retryable "try again shortly" condition;
// it is never silently substituted.
var ErrModelNotReady = errors.New("embedding model is not ready")

// Encoder maps normalized text to unit-length 384-dimension vectors.
// The underlying provider is loaded once; concurrent first-use is serialized
// through a single in-flight-load guard so a second caller never starts a
// second load and instead awaits the first.
type Encoder struct {
	provider EmbeddingProvider

	mu      sync.Mutex
	ready   bool
	loading chan struct{}
}

func NewEncoder(provider EmbeddingProvider) *Encoder {
	return &Encoder{provider: provider}
}

// Initialize loads the embedding model by running a warm-up embed and
// verifying its dimension. Idempotent and safe for concurrent use: callers
// that arrive during an in-flight load block until it completes.
func (e *Encoder) Initialize(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.ready {
			e.mu.Unlock()
			return nil
		}
		if e.loading == nil {
			e.loading = make(chan struct{})
			done := e.loading
			e.mu.Unlock()

			err := e.load()

			e.mu.Lock()
			if err == nil {
				e.ready = true
			}
			e.loading = nil
			close(done)
			e.mu.Unlock()

			if err != nil {
				return fmt.Errorf("%w: %v", ErrModelNotReady, err)
			}
			return nil
		}

		// Another caller is loading; await the same completion.
		done := e.loading
		e.mu.Unlock()

		select {
		case <-done:
			// Re-check ready state: the load may have failed.
			e.mu.Lock()
			ready := e.ready
			e.mu.Unlock()
			if ready {
				return nil
			}
			return ErrModelNotReady
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Encoder) load() error {
	res, err := e.provider.Generate(warmupText, taskTypeQuery)
	if err != nil {
		return err
	}
	if len(res.Embedding.Values) != Dimension {
		return fmt.Errorf("model produced %d dimensions, want %d", len(res.Embedding.Values), Dimension)
	}
	return nil
}

// Ready reports whether the model has completed loading.
func (e *Encoder) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Encode normalizes text and maps it to a unit-length vector. Invoked before
// Initialize has completed, it triggers lazy initialization; ErrModelNotReady
// is returned only when that lazy load also fails.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if !e.Ready() {
		if err := e.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	res, err := e.provider.Generate(Preprocess(text), taskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}

	values := res.Embedding.Values
	if len(values) != Dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), Dimension)
	}

	return normalizeVector(values), nil
}

// EncodeBatch is element-for-element equivalent to calling Encode on each
// text. Input is processed in fixed-size chunks with a small pause between
// them to bound provider load.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(texts) {
			end = len(texts)
		}

		for _, text := range texts[start:end] {
			vec, err := e.Encode(ctx, text)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vec)
		}

		if end < len(texts) {
			select {
			case <-time.After(batchPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return vectors, nil
}

// Preprocess canonicalizes text before encoding: surrounding whitespace is
// trimmed, internal whitespace runs collapse to a single space, characters
// outside a basic alphanumeric-and-punctuation set are dropped, and the
// result is lowercased. Idempotent.
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		if unicode.IsLetter(r) || unicode.IsDigit(r) || isBasicPunct(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.TrimSpace(b.String())
}

func isBasicPunct(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '\'', '"', '(', ')', '-':
		return true
	}
	return false
}

// normalizeVector normalizes a vector to unit length (magnitude = 1).
// Cosine distance in pgvector expects normalized vectors.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
