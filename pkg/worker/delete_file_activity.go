package worker

import (
	"context"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	errorsx "github.com/instill-ai/x/errors"
)

// DeleteDocumentVectorsActivityParam defines the parameters for the DeleteDocumentVectorsActivity
type DeleteDocumentVectorsActivityParam struct {
	DocID string
}

// DeleteDocumentVectorsActivity removes the document's vector from the
// index. A missing collection or vector is a no-op.
func (w *Worker) DeleteDocumentVectorsActivity(ctx context.Context, param *DeleteDocumentVectorsActivityParam) error {
	w.log.Info("Deleting document vectors", zap.String("docID", param.DocID))

	if err := w.vector.DeleteDocumentVectors(ctx, []string{param.DocID}); err != nil {
		err = errorsx.AddMessage(err, "Unable to remove the document from the vector index.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteDocumentVectorsActivityError,
			err,
		)
	}
	return nil
}

// DeleteDocumentRowActivityParam defines the parameters for the DeleteDocumentRowActivity
type DeleteDocumentRowActivityParam struct {
	DocID string
}

// DeleteDocumentRowActivity removes the document's metadata row
func (w *Worker) DeleteDocumentRowActivity(ctx context.Context, param *DeleteDocumentRowActivityParam) error {
	w.log.Info("Deleting document row", zap.String("docID", param.DocID))

	if err := w.repository.DeleteDocument(ctx, param.DocID); err != nil {
		err = errorsx.AddMessage(err, "Unable to delete the document record.")
		return temporal.NewApplicationErrorWithCause(
			errorsx.MessageOrErr(err),
			deleteDocumentRowActivityError,
			err,
		)
	}
	return nil
}

// Activity error type constants
const (
	deleteDocumentVectorsActivityError = "DeleteDocumentVectorsActivity"
	deleteDocumentRowActivityError     = "DeleteDocumentRowActivity"
)
