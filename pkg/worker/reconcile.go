package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// reconcileProgressInterval controls how often deletion progress is logged.
const reconcileProgressInterval = 100

// ReconcileResult summarizes one reconciliation run.
type ReconcileResult struct {
	// VectorsScanned is the number of IDs found in the vector index.
	VectorsScanned int
	// Orphans is the number of vectors with no matching document row.
	Orphans int
	// Deleted is the number of orphans successfully removed.
	Deleted int
	// Failed is the number of orphan deletions that errored.
	Failed int
}

// ReconcileVectorIndex removes vectors whose document row no longer exists.
// Orphans accumulate when a delete workflow loses its vector step or a
// document is removed while its run is in flight. The pass is idempotent
// and per-orphan errors are swallowed; the next run picks them up.
func (w *Worker) ReconcileVectorIndex(ctx context.Context) (*ReconcileResult, error) {
	docIDs, err := w.repository.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing document IDs: %w", err)
	}

	known := make(map[string]bool, len(docIDs))
	for _, id := range docIDs {
		known[id] = true
	}

	vectorIDs, err := w.vector.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing vector IDs: %w", err)
	}

	result := &ReconcileResult{VectorsScanned: len(vectorIDs)}

	var orphans []string
	for _, id := range vectorIDs {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	result.Orphans = len(orphans)

	w.log.Info("Vector index reconciliation started",
		zap.Int("documents", len(docIDs)),
		zap.Int("vectors", result.VectorsScanned),
		zap.Int("orphans", result.Orphans))

	// One delete per orphan. Batching would be faster, but a single bad ID
	// must not sink the rest of the pass.
	for i, id := range orphans {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := w.vector.DeleteDocumentVectors(ctx, []string{id}); err != nil {
			result.Failed++
			w.log.Warn("Failed to delete orphaned vector",
				zap.String("docID", id),
				zap.Error(err))
			continue
		}
		result.Deleted++

		if (i+1)%reconcileProgressInterval == 0 {
			w.log.Info("Reconciliation progress",
				zap.Int("processed", i+1),
				zap.Int("orphans", result.Orphans))
		}
	}

	w.log.Info("Vector index reconciliation finished",
		zap.Int("scanned", result.VectorsScanned),
		zap.Int("orphans", result.Orphans),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed))

	return result, nil
}
