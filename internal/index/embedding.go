package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Aman-CERP/paperrag/internal/embed"
	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// EmbedAll embeds texts in sequential batches of batchSize. When a batch
// call fails, that batch is retried one text at a time so a single bad
// item cannot sink its neighbours. The result has one vector per text, in
// input order; any per-item failure aborts with ErrCodeEmbeddingFailed.
func EmbedAll(ctx context.Context, emb embed.Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		vecs, err := emb.EmbedBatch(ctx, batch)
		if err == nil && len(vecs) != len(batch) {
			err = fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(batch))
		}
		if err != nil {
			slog.Warn("embed_batch_failed, falling back to single requests",
				slog.Int("batch_start", start),
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			vecs, err = embedEach(ctx, emb, batch, start)
			if err != nil {
				return nil, err
			}
		}
		vectors = append(vectors, vecs...)
	}
	return vectors, nil
}

func embedEach(ctx context.Context, emb embed.Embedder, texts []string, offset int) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := emb.Embed(ctx, t)
		if err != nil {
			return nil, perrors.New(perrors.ErrCodeEmbeddingFailed, "embedding failed", err).
				WithDetail("chunk_index", strconv.Itoa(offset+i)).
				WithDetail("model", emb.ModelName())
		}
		vecs[i] = v
	}
	return vecs, nil
}
