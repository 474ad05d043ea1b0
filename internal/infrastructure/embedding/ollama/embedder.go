package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/askdocs/pdfchat/internal/core/domain"
	"github.com/askdocs/pdfchat/internal/infrastructure/resilience"
)

const defaultBatchSize = 32

// Embedder calls the Ollama embedding endpoint. Inputs are embedded in
// batches; vector order always matches input order.
type Embedder struct {
	baseURL    string
	model      string
	batchSize  int
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BatchSize          int
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewEmbedder(baseURL, model string, options Options) *Embedder {
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	if len(out) != len(texts) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(out), len(texts)))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "embed query",
			fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": e.model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(callCtx context.Context) error {
		return e.postJSON(callCtx, "/api/embed", request, &response)
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "ollama.embed", call, classifyEmbedError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapUnavailableIfNeeded(err)
	}
	return response.Embeddings, nil
}
