package handler

import (
	"context"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/pkg/repository"
	"github.com/docvault/ingest-backend/pkg/worker"

	errorsx "github.com/instill-ai/x/errors"
)

// ProcessFileTrigger starts a document processing workflow.
type ProcessFileTrigger interface {
	Execute(ctx context.Context, param worker.ProcessFileWorkflowParam) error
}

// DeleteFileTrigger starts a document deletion workflow.
type DeleteFileTrigger interface {
	Execute(ctx context.Context, param worker.DeleteFileWorkflowParam) error
}

// DocumentHandler serves the public document ingestion API.
type DocumentHandler struct {
	repository     repository.Repository
	processTrigger ProcessFileTrigger
	deleteTrigger  DeleteFileTrigger
	validate       *validator.Validate
	log            *zap.Logger
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(repo repository.Repository, processTrigger ProcessFileTrigger, deleteTrigger DeleteFileTrigger, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		repository:     repo,
		processTrigger: processTrigger,
		deleteTrigger:  deleteTrigger,
		validate:       validator.New(),
		log:            log,
	}
}

// RegisterRoutes mounts the document API on the app.
func (h *DocumentHandler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/v1")
	v1.Post("/documents/ingest", h.Ingest)
	v1.Post("/documents/:docId/delete", h.Delete)
	v1.Get("/documents/:docId", h.Get)
	app.Get("/healthz", h.Healthz)
}

// IngestRequest is the body of POST /v1/documents/ingest.
type IngestRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type"`
	URL        string `json:"url" validate:"required,url"`
	FolderID   string `json:"folderId"`
	UploadedBy string `json:"uploadedBy"`
}

// IngestResponse acknowledges an accepted ingestion trigger.
type IngestResponse struct {
	ID             string `json:"id"`
	ProcessVersion int64  `json:"processVersion"`
	Status         string `json:"status"`
}

// Ingest registers (or re-registers) a document and starts its processing
// workflow. Re-ingesting an existing document bumps its process version and
// terminates the run still working on the previous upload.
func (h *DocumentHandler) Ingest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.ID == "" {
		req.ID = uuid.Must(uuid.NewV4()).String()
	}

	version, err := h.repository.EnsureDocumentProcessing(c.Context(), repository.DocumentModel{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.Type,
		URL:        req.URL,
		FolderID:   req.FolderID,
		UploadedBy: req.UploadedBy,
	})
	if err != nil {
		h.log.Error("Failed to register document", zap.String("docID", req.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errorsx.MessageOrErr(err)})
	}

	if err := h.processTrigger.Execute(c.Context(), worker.ProcessFileWorkflowParam{
		DocID:          req.ID,
		ProcessVersion: version,
	}); err != nil {
		h.log.Error("Failed to start processing workflow", zap.String("docID", req.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errorsx.MessageOrErr(err)})
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestResponse{
		ID:             req.ID,
		ProcessVersion: version,
		Status:         repository.DocumentStatusUploaded,
	})
}

// Delete starts the deletion workflow for a document.
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	docID := c.Params("docId")
	if docID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing document id"})
	}

	if err := h.deleteTrigger.Execute(c.Context(), worker.DeleteFileWorkflowParam{DocID: docID}); err != nil {
		h.log.Error("Failed to start delete workflow", zap.String("docID", docID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errorsx.MessageOrErr(err)})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": docID, "status": "deleting"})
}

// Get returns the document metadata row.
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	docID := c.Params("docId")

	doc, err := h.repository.GetDocumentByID(c.Context(), docID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}

	return c.JSON(doc)
}

// Healthz is the liveness probe.
func (h *DocumentHandler) Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
