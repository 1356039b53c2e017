package worker

import (
	"context"
	"fmt"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DeleteFileWorkflowParam defines the parameters for DeleteFileWorkflow
type DeleteFileWorkflowParam struct {
	DocID string
}

type deleteFileWorkflow struct {
	temporalClient client.Client
	worker         *Worker
}

// NewDeleteFileWorkflow creates a new DeleteFileWorkflow instance
func NewDeleteFileWorkflow(temporalClient client.Client, worker *Worker) *deleteFileWorkflow {
	return &deleteFileWorkflow{
		temporalClient: temporalClient,
		worker:         worker,
	}
}

func (w *deleteFileWorkflow) Execute(ctx context.Context, param DeleteFileWorkflowParam) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("delete-file-%s", param.DocID),
		TaskQueue:                TaskQueue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
	}

	_, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, w.worker.DeleteFileWorkflow, param)
	return err
}

// DeleteFileWorkflow removes a document from the vector index and the
// metadata store. Both steps are best effort: a vector that fails to delete
// now is picked up by the reconciler later.
func (w *Worker) DeleteFileWorkflow(ctx workflow.Context, param DeleteFileWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting DeleteFileWorkflow", "docID", param.DocID)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutStandard,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumInterval,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	if err := workflow.ExecuteActivity(ctx, w.DeleteDocumentVectorsActivity, &DeleteDocumentVectorsActivityParam{
		DocID: param.DocID,
	}).Get(ctx, nil); err != nil {
		logger.Warn("Failed to delete document vectors, continuing",
			"docID", param.DocID,
			"error", err)
	}

	if err := workflow.ExecuteActivity(ctx, w.DeleteDocumentRowActivity, &DeleteDocumentRowActivityParam{
		DocID: param.DocID,
	}).Get(ctx, nil); err != nil {
		logger.Warn("Failed to delete document row, continuing",
			"docID", param.DocID,
			"error", err)
	}

	logger.Info("DeleteFileWorkflow completed", "docID", param.DocID)
	return nil
}
