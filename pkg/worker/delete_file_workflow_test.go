package worker

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stretchr/testify/mock"
)

func TestDeleteFileWorkflow_DeletesVectorsAndRow(t *testing.T) {
	c := qt.New(t)
	w, env := newWorkflowTestEnv()

	vectorsDeleted := false
	rowDeleted := false
	env.OnActivity(w.DeleteDocumentVectorsActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, param *DeleteDocumentVectorsActivityParam) error {
			vectorsDeleted = true
			c.Assert(param.DocID, qt.Equals, "doc-1")
			return nil
		})
	env.OnActivity(w.DeleteDocumentRowActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, param *DeleteDocumentRowActivityParam) error {
			rowDeleted = true
			return nil
		})

	env.ExecuteWorkflow(w.DeleteFileWorkflow, DeleteFileWorkflowParam{DocID: "doc-1"})

	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)
	c.Assert(vectorsDeleted, qt.IsTrue)
	c.Assert(rowDeleted, qt.IsTrue)
}

func TestDeleteFileWorkflow_VectorFailureStillDeletesRow(t *testing.T) {
	c := qt.New(t)
	w, env := newWorkflowTestEnv()

	rowDeleted := false
	env.OnActivity(w.DeleteDocumentVectorsActivity, mock.Anything, mock.Anything).Return(
		fmt.Errorf("milvus unavailable"))
	env.OnActivity(w.DeleteDocumentRowActivity, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, param *DeleteDocumentRowActivityParam) error {
			rowDeleted = true
			return nil
		})

	env.ExecuteWorkflow(w.DeleteFileWorkflow, DeleteFileWorkflowParam{DocID: "doc-2"})

	// Both steps are best effort; the workflow itself never fails
	c.Assert(env.IsWorkflowCompleted(), qt.IsTrue)
	c.Assert(env.GetWorkflowError(), qt.IsNil)
	c.Assert(rowDeleted, qt.IsTrue)
}
