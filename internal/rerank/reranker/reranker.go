// Package reranker contains the adapters that send extracted document texts
// to a remote reranking service and hand back its raw response body.
package reranker

import (
	"context"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// Backend is a remote reranking service
type Backend interface {
	// ID returns the backend ID
	ID() types.BackendID

	// Model returns the resolved model name, used in cache keys
	Model() string

	// Rerank scores texts against query and returns the raw response body.
	// Texts are the raw extracted document texts; any wrapping happens inside.
	Rerank(ctx context.Context, query string, texts []string, topN int) ([]byte, error)
}

// rerankRequest is the wire body shared by all supported backends
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// TopN caps topK at the number of documents
func TopN(topK, documentCount int) int {
	return min(topK, documentCount)
}
