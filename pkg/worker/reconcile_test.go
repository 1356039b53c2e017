package worker

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/pkg/milvus"
	"github.com/docvault/ingest-backend/pkg/repository"
)

// fakeRepository overrides only what the reconciler touches. Any other call
// panics through the embedded nil interface.
type fakeRepository struct {
	repository.Repository
	ids []string
}

func (f *fakeRepository) ListDocumentIDs(ctx context.Context) ([]string, error) {
	return f.ids, nil
}

type fakeVector struct {
	milvus.MilvusClientI
	ids     []string
	deleted []string
	failOn  map[string]bool
}

func (f *fakeVector) ListDocumentIDs(ctx context.Context) ([]string, error) {
	return f.ids, nil
}

func (f *fakeVector) DeleteDocumentVectors(ctx context.Context, docIDs []string) error {
	for _, id := range docIDs {
		if f.failOn[id] {
			return fmt.Errorf("delete failed for %s", id)
		}
	}
	f.deleted = append(f.deleted, docIDs...)
	return nil
}

func newReconcileWorker(repo *fakeRepository, vector *fakeVector) *Worker {
	return &Worker{
		repository: repo,
		vector:     vector,
		log:        zap.NewNop(),
	}
}

func TestReconcileVectorIndex_DeletesOrphans(t *testing.T) {
	c := qt.New(t)

	repo := &fakeRepository{ids: []string{"doc-1", "doc-2"}}
	vector := &fakeVector{ids: []string{"doc-1", "doc-2", "orphan-1", "orphan-2"}}
	w := newReconcileWorker(repo, vector)

	result, err := w.ReconcileVectorIndex(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(result.VectorsScanned, qt.Equals, 4)
	c.Assert(result.Orphans, qt.Equals, 2)
	c.Assert(result.Deleted, qt.Equals, 2)
	c.Assert(result.Failed, qt.Equals, 0)
	c.Assert(vector.deleted, qt.DeepEquals, []string{"orphan-1", "orphan-2"})
}

func TestReconcileVectorIndex_SwallowsPerItemErrors(t *testing.T) {
	c := qt.New(t)

	repo := &fakeRepository{ids: []string{"doc-1"}}
	vector := &fakeVector{
		ids:    []string{"doc-1", "bad-orphan", "good-orphan"},
		failOn: map[string]bool{"bad-orphan": true},
	}
	w := newReconcileWorker(repo, vector)

	result, err := w.ReconcileVectorIndex(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(result.Orphans, qt.Equals, 2)
	c.Assert(result.Deleted, qt.Equals, 1)
	c.Assert(result.Failed, qt.Equals, 1)
	c.Assert(vector.deleted, qt.DeepEquals, []string{"good-orphan"})
}

func TestReconcileVectorIndex_EmptyIndexIsNoOp(t *testing.T) {
	c := qt.New(t)

	repo := &fakeRepository{ids: []string{"doc-1"}}
	vector := &fakeVector{}
	w := newReconcileWorker(repo, vector)

	result, err := w.ReconcileVectorIndex(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(result.VectorsScanned, qt.Equals, 0)
	c.Assert(result.Orphans, qt.Equals, 0)
	c.Assert(vector.deleted, qt.HasLen, 0)
}

func TestReconcileVectorIndex_Idempotent(t *testing.T) {
	c := qt.New(t)

	repo := &fakeRepository{ids: []string{"doc-1"}}
	vector := &fakeVector{ids: []string{"doc-1", "orphan-1"}}
	w := newReconcileWorker(repo, vector)

	_, err := w.ReconcileVectorIndex(context.Background())
	c.Assert(err, qt.IsNil)

	// Second pass over the already-cleaned index finds the same orphan set
	// gone from the metadata side only; deleting again must not error
	result, err := w.ReconcileVectorIndex(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(result.Failed, qt.Equals, 0)
}
