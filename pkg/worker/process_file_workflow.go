package worker

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/docvault/ingest-backend/pkg/repository"

	errorsx "github.com/instill-ai/x/errors"
)

// ProcessFileWorkflowParam defines the parameters for ProcessFileWorkflow
type ProcessFileWorkflowParam struct {
	// DocID is the document identifier.
	DocID string
	// ProcessVersion is the run's version, minted when the trigger was
	// accepted. The terminal write only applies while the document row
	// still carries it.
	ProcessVersion int64
}

type processFileWorkflow struct {
	temporalClient client.Client
	worker         *Worker
}

// NewProcessFileWorkflow creates a new ProcessFileWorkflow instance
func NewProcessFileWorkflow(temporalClient client.Client, worker *Worker) *processFileWorkflow {
	return &processFileWorkflow{
		temporalClient: temporalClient,
		worker:         worker,
	}
}

// Execute starts the workflow. One workflow ID per document plus the
// TERMINATE_EXISTING conflict policy gives newest-wins semantics: a
// re-upload kills the run still processing the previous upload.
func (w *processFileWorkflow) Execute(ctx context.Context, param ProcessFileWorkflowParam) error {
	workflowOptions := client.StartWorkflowOptions{
		ID:                       fmt.Sprintf("process-file-%s", param.DocID),
		TaskQueue:                TaskQueue,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
	}

	_, err := w.temporalClient.ExecuteWorkflow(ctx, workflowOptions, w.worker.ProcessFileWorkflow, param)
	return err
}

// ProcessFileWorkflow orchestrates the document ingestion pipeline:
//
//  1. Read system config (model names)
//  2. Download the document and run the local extractor chain
//  3. Vision recovery when no local parser produced usable text
//  4. Metadata synthesis (best effort, placeholder on failure)
//  5. Version-guarded terminal write (indexed / indexed_partial)
//  6. Embed and upsert into the vector index (best effort)
//
// Every hard failure marks the document failed with its error details
// before the workflow itself fails.
func (w *Worker) ProcessFileWorkflow(ctx workflow.Context, param ProcessFileWorkflowParam) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting ProcessFileWorkflow",
		"docID", param.DocID,
		"processVersion", param.ProcessVersion)

	if param.DocID == "" {
		return fmt.Errorf("no document provided for processing")
	}

	completed := false

	// Defer cleanup: if the workflow is terminated/cancelled/timed out, mark
	// the document as FAILED. Disconnected context so this runs even after
	// cancellation.
	defer func() {
		if !completed {
			cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
			cleanupCtx = workflow.WithActivityOptions(cleanupCtx, workflow.ActivityOptions{
				StartToCloseTimeout: time.Minute,
				RetryPolicy: &temporal.RetryPolicy{
					InitialInterval:    RetryInitialInterval,
					BackoffCoefficient: RetryBackoffCoefficient,
					MaximumInterval:    RetryMaximumInterval,
					MaximumAttempts:    RetryMaximumAttempts,
				},
			})

			logger.Warn("Workflow did not complete, marking document as FAILED", "docID", param.DocID)

			// Best effort update - ignore errors
			_ = workflow.ExecuteActivity(cleanupCtx, w.MarkDocumentFailedActivity, &MarkDocumentFailedActivityParam{
				DocID:   param.DocID,
				Message: "Document processing was interrupted or terminated before completion",
			}).Get(cleanupCtx, nil)
		}
	}()

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: ActivityTimeoutLong,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    RetryInitialInterval,
			BackoffCoefficient: RetryBackoffCoefficient,
			MaximumInterval:    RetryMaximumInterval,
			MaximumAttempts:    RetryMaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// handleError marks the document failed and fails the workflow
	handleError := func(stage string, err error) error {
		logger.Error("Failed at stage", "stage", stage, "docID", param.DocID, "error", err)

		errMsg := errorsx.MessageOrErr(err)

		statusErr := workflow.ExecuteActivity(ctx, w.MarkDocumentFailedActivity, &MarkDocumentFailedActivityParam{
			DocID:   param.DocID,
			Message: fmt.Sprintf("%s: %s", stage, errMsg),
		}).Get(ctx, nil)
		if statusErr != nil {
			logger.Error("Failed to mark document as FAILED", "docID", param.DocID, "statusError", statusErr)
		}

		// The document reached its terminal state with the specific error
		// persisted; the deferred cleanup must not overwrite it with the
		// generic interrupted message.
		completed = true

		return errorsx.AddMessage(
			fmt.Errorf("%s: %s", stage, errMsg),
			fmt.Sprintf("Document %s processing failed at %s stage. %s", param.DocID, stage, errMsg),
		)
	}

	updateStatus := func(stage string) error {
		return workflow.ExecuteActivity(ctx, w.UpdateDocumentStatusActivity, &UpdateDocumentStatusActivityParam{
			DocID: param.DocID,
			Stage: stage,
		}).Get(ctx, nil)
	}

	// Step 1: System config decides which models the run uses
	var sysConfig repository.SystemConfig
	if err := workflow.ExecuteActivity(ctx, w.GetSystemConfigActivity).Get(ctx, &sysConfig); err != nil {
		return handleError("get system config", err)
	}

	// Step 2: Download and run the local extractor chain
	if err := updateStatus(StageDownloading); err != nil {
		return handleError("update status", err)
	}

	var extractResult DownloadAndExtractActivityResult
	if err := workflow.ExecuteActivity(ctx, w.DownloadAndExtractActivity, &DownloadAndExtractActivityParam{
		DocID: param.DocID,
	}).Get(ctx, &extractResult); err != nil {
		return handleError("download and extract", err)
	}

	text := extractResult.Text
	method := extractResult.Method
	isPartial := false

	// Step 3: Vision recovery when the chain produced nothing usable
	if extractResult.NeedsRecovery {
		logger.Info("Local extraction insufficient, falling back to vision recovery",
			"docID", param.DocID,
			"reason", extractResult.RecoveryReason)

		if err := updateStatus(StageOCRProcessing); err != nil {
			return handleError("update status", err)
		}

		var recoveryResult VisionRecoveryActivityResult
		if err := workflow.ExecuteActivity(ctx, w.VisionRecoveryActivity, &VisionRecoveryActivityParam{
			DocID: param.DocID,
			Model: sysConfig.OCRModel,
		}).Get(ctx, &recoveryResult); err != nil {
			return handleError("vision recovery", err)
		}

		text = recoveryResult.Text
		method = recoveryResult.Method
		isPartial = recoveryResult.IsPartial
	}

	// Step 4: Metadata synthesis. The activity never fails; a broken model
	// response yields placeholder metadata.
	if err := updateStatus(StageAIAnalysis); err != nil {
		return handleError("update status", err)
	}

	var metadataResult SynthesizeMetadataActivityResult
	if err := workflow.ExecuteActivity(ctx, w.SynthesizeMetadataActivity, &SynthesizeMetadataActivityParam{
		DocID: param.DocID,
		Text:  text,
		Model: sysConfig.AnalysisModel,
	}).Get(ctx, &metadataResult); err != nil {
		return handleError("synthesize metadata", err)
	}

	// Step 5: Version-guarded terminal write
	if err := updateStatus(StageSaving); err != nil {
		return handleError("update status", err)
	}

	status := repository.DocumentStatusIndexed
	if isPartial {
		status = repository.DocumentStatusIndexedPartial
	}

	var finalizeResult FinalizeDocumentActivityResult
	if err := workflow.ExecuteActivity(ctx, w.FinalizeDocumentActivity, &FinalizeDocumentActivityParam{
		DocID:          param.DocID,
		ProcessVersion: param.ProcessVersion,
		Status:         status,
		Text:           text,
		Method:         method,
		Metadata:       metadataResult.Metadata,
		Size:           extractResult.Size,
	}).Get(ctx, &finalizeResult); err != nil {
		return handleError("finalize document", err)
	}

	if !finalizeResult.Applied {
		// A newer upload bumped the version while this run was in flight.
		// The row belongs to the newer run now; leave it and its index alone.
		logger.Info("Terminal write superseded by a newer run, skipping indexing",
			"docID", param.DocID,
			"processVersion", param.ProcessVersion)
		completed = true
		return nil
	}

	// Step 6: Embedding and vector upsert. Best effort: an unindexed
	// document is still terminally successful.
	if err := workflow.ExecuteActivity(ctx, w.EmbedAndIndexActivity, &EmbedAndIndexActivityParam{
		DocID:    param.DocID,
		Text:     text,
		Metadata: metadataResult.Metadata,
	}).Get(ctx, nil); err != nil {
		logger.Warn("Embedding or vector indexing failed, document stays unindexed",
			"docID", param.DocID,
			"error", err)
	}

	completed = true
	logger.Info("ProcessFileWorkflow completed",
		"docID", param.DocID,
		"status", status,
		"method", method)
	return nil
}
