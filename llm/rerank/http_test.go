package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_Rerank(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Texts, 3)

		// 第二个文档最相关.
		json.NewEncoder(w).Encode([]rerankResponseItem{
			{Index: 0, Score: 0.2},
			{Index: 1, Score: 0.9},
			{Index: 2, Score: 0.5},
		})
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "ms-marco-MiniLM-L-6-v2"})

	results, err := p.Rerank(context.Background(), "fever remedy",
		[]string{"heart text", "fever text", "digestion text"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Index)
	assert.InDelta(t, 0.9, results[0].RelevanceScore, 1e-9)
	assert.Equal(t, 2, results[1].Index)
}

func TestHTTPProvider_EmptyDocuments(t *testing.T) {
	p := NewHTTPProvider(HTTPConfig{BaseURL: "http://unused"})

	results, err := p.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHTTPProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})

	_, err := p.Rerank(context.Background(), "query", []string{"doc"}, 1)
	assert.Error(t, err)
}
