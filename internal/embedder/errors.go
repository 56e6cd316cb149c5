package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/54b3r/docrag-go/internal/rag"
)

// previewLimit is the number of characters of the failing text quoted in an
// EmbedError.
const previewLimit = 80

// DefaultBatchSize is the number of texts sent per embedding request by
// EmbedAll when the caller does not choose.
const DefaultBatchSize = 32

// EmbedError reports which input of a batch could not be embedded.
type EmbedError struct {
	// Index is the 0-based position of the failing text in the caller's input.
	Index int
	// Preview is the start of the failing text, see Preview.
	Preview string
	// Err is the underlying backend error.
	Err error
}

// Error implements error.
func (e *EmbedError) Error() string {
	return fmt.Sprintf("embedding failed at chunk %d (preview: %s): %v", e.Index, e.Preview, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *EmbedError) Unwrap() error { return e.Err }

// Preview returns the first 80 characters of text followed by "..." when the
// text is longer than that, otherwise text unchanged.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLimit {
		return text
	}
	return string(r[:previewLimit]) + "..."
}

// errAt builds an EmbedError for texts[i].
func errAt(texts []string, i int, err error) *EmbedError {
	return &EmbedError{Index: i, Preview: Preview(texts[i]), Err: err}
}

// EmbedAll embeds texts in batches of batchSize and returns one vector per
// text in input order. The first failing batch aborts the whole call. The
// returned *EmbedError points at the failing text when the backend reports it,
// otherwise at the first text of the failing batch.
func EmbedAll(ctx context.Context, e rag.Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		vecs, err := e.Embed(ctx, batch)
		if err != nil {
			var ee *EmbedError
			if errors.As(err, &ee) {
				return nil, &EmbedError{Index: start + ee.Index, Preview: ee.Preview, Err: ee.Err}
			}
			return nil, errAt(texts, start, err)
		}
		if len(vecs) != len(batch) {
			return nil, errAt(texts, start, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs)))
		}
		for i, v := range vecs {
			if len(v) == 0 {
				return nil, errAt(texts, start+i, errors.New("empty embedding"))
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
