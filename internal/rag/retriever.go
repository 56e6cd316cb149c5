package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultTopK is the number of passages retrieved per question when the
// caller does not choose.
const DefaultTopK = 5

// DefaultRetriever answers Retrieve by embedding the question and running a
// nearest-neighbour query against a VectorStore.
type DefaultRetriever struct {
	embed Embedder
	index VectorStore
	topK  int
}

// NewRetriever builds a retriever over index. topK is used when Retrieve is
// called with a non-positive topK; zero or less selects DefaultTopK.
func NewRetriever(embed Embedder, index VectorStore, topK int) (*DefaultRetriever, error) {
	switch {
	case embed == nil:
		return nil, errors.New("rag: retriever needs an embedder")
	case index == nil:
		return nil, errors.New("rag: retriever needs a vector store")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DefaultRetriever{embed: embed, index: index, topK: topK}, nil
}

// Retrieve returns at most topK chunks ordered nearest first. A blank
// question or an empty index returns no results without calling the
// embedder.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	stored, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: count failed: %w", err)
	}
	if stored == 0 {
		return nil, nil
	}

	vecs, err := r.embed.Embed(ctx, []string{query})
	switch {
	case err != nil:
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	case len(vecs) != 1 || len(vecs[0]) == 0:
		return nil, errors.New("rag: embedder returned no vector for the question")
	}

	hits, err := r.index.Query(ctx, vecs[0], min(topK, stored))
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	slices.SortStableFunc(hits, func(a, b Result) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return hits, nil
}
