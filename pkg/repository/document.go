package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Document lifecycle statuses. The processing-* value carries the current
// stage label, e.g. "processing-downloading".
const (
	DocumentStatusPending        = "pending"
	DocumentStatusUploaded       = "uploaded"
	DocumentStatusIndexed        = "indexed"
	DocumentStatusIndexedPartial = "indexed_partial"
	DocumentStatusFailed         = "failed"
)

// DocumentStatusProcessing returns the in-flight status value for a stage.
func DocumentStatusProcessing(stage string) string {
	return fmt.Sprintf("processing-%s", stage)
}

// ProcessingLogLine formats the transient progress line written to
// extracted_content while a document is being processed. The terminal write
// replaces it with the extraction result.
func ProcessingLogLine(stage string, now time.Time) string {
	return fmt.Sprintf("[%s] Processing: %s...", now.UTC().Format(time.RFC3339), stage)
}

// ErrorDetailsLine formats the failure message persisted on terminal failure.
func ErrorDetailsLine(message string) string {
	return fmt.Sprintf("ERROR_DETAILS: %s", message)
}

type DocumentI interface {
	GetDocumentByID(ctx context.Context, docID string) (*DocumentModel, error)
	ListDocumentIDs(ctx context.Context) ([]string, error)
	EnsureDocumentProcessing(ctx context.Context, doc DocumentModel) (int64, error)
	UpdateDocumentStatus(ctx context.Context, docID string, stage string) error
	MarkDocumentFailed(ctx context.Context, docID string, message string) error
	FinalizeDocument(ctx context.Context, docID string, processVersion int64, update DocumentFinalUpdate) (bool, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// DocumentModel is the metadata row of an ingested document.
type DocumentModel struct {
	ID               string    `gorm:"column:id;primaryKey" json:"id"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	Type             string    `gorm:"column:type" json:"type"`
	Content          string    `gorm:"column:content" json:"content"`
	URL              string    `gorm:"column:url" json:"url"`
	Size             int64     `gorm:"column:size" json:"size"`
	UploadDate       int64     `gorm:"column:upload_date" json:"upload_date"`
	ExtractedContent string    `gorm:"column:extracted_content" json:"extracted_content"`
	FolderID         string    `gorm:"column:folder_id" json:"folder_id"`
	UploadedBy       string    `gorm:"column:uploaded_by" json:"uploaded_by"`
	Status           string    `gorm:"column:status;size:50;not null;default:pending" json:"status"`
	ProcessVersion   int64     `gorm:"column:process_version;not null;default:0" json:"process_version"`
	CreateTime       time.Time `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
	UpdateTime       time.Time `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

// TableName overrides the gorm default pluralisation rule explicitly.
func (DocumentModel) TableName() string {
	return "documents"
}

// table columns map
type DocumentColumns struct {
	ID               string
	Name             string
	Type             string
	Content          string
	URL              string
	Size             string
	UploadDate       string
	ExtractedContent string
	FolderID         string
	UploadedBy       string
	Status           string
	ProcessVersion   string
	CreateTime       string
	UpdateTime       string
}

var DocumentColumn = DocumentColumns{
	ID:               "id",
	Name:             "name",
	Type:             "type",
	Content:          "content",
	URL:              "url",
	Size:             "size",
	UploadDate:       "upload_date",
	ExtractedContent: "extracted_content",
	FolderID:         "folder_id",
	UploadedBy:       "uploaded_by",
	Status:           "status",
	ProcessVersion:   "process_version",
	CreateTime:       "create_time",
	UpdateTime:       "update_time",
}

// DocumentFinalUpdate is the terminal write of a processing run.
type DocumentFinalUpdate struct {
	Status string
	// ExtractedContent is the indexed payload: metadata JSON, full text,
	// and the extraction method. It replaces the transient progress log,
	// and clients parse it structurally. The content column stays as the
	// upload wrote it.
	ExtractedContent string
	Size             int64
}

func (r *repository) GetDocumentByID(ctx context.Context, docID string) (*DocumentModel, error) {
	var doc DocumentModel
	whereClause := fmt.Sprintf("%s = ?", DocumentColumn.ID)
	if err := r.db.WithContext(ctx).Where(whereClause, docID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document not found. id: {%v}", docID)
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocumentIDs returns the ids of all document rows. Used by the
// reconciler to compute the set of ids the vector index is allowed to hold.
func (r *repository) ListDocumentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&DocumentModel{}).Pluck(DocumentColumn.ID, &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// EnsureDocumentProcessing upserts the document row for an ingestion trigger
// and bumps its process version. The returned version is carried by the
// workflow run and checked again on the terminal write, so that a run
// superseded by a newer trigger can no longer overwrite the result.
func (r *repository) EnsureDocumentProcessing(ctx context.Context, doc DocumentModel) (int64, error) {
	var version int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing DocumentModel
		whereClause := fmt.Sprintf("%s = ?", DocumentColumn.ID)
		err := tx.Where(whereClause, doc.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			doc.Status = DocumentStatusUploaded
			doc.ProcessVersion = 1
			doc.UploadDate = time.Now().UnixMilli()
			if err := tx.Create(&doc).Error; err != nil {
				return err
			}
			version = doc.ProcessVersion
			return nil
		}
		if err != nil {
			return err
		}

		version = existing.ProcessVersion + 1
		updates := map[string]interface{}{
			DocumentColumn.ProcessVersion: version,
			DocumentColumn.Status:         DocumentStatusUploaded,
			DocumentColumn.Name:           doc.Name,
			DocumentColumn.Type:           doc.Type,
			DocumentColumn.URL:            doc.URL,
		}
		return tx.Model(&DocumentModel{}).Where(whereClause, doc.ID).Updates(updates).Error
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// UpdateDocumentStatus records the current processing stage. The progress
// line overwrites extracted_content wholesale.
func (r *repository) UpdateDocumentStatus(ctx context.Context, docID string, stage string) error {
	updates := map[string]interface{}{
		DocumentColumn.Status:           DocumentStatusProcessing(stage),
		DocumentColumn.ExtractedContent: ProcessingLogLine(stage, time.Now()),
	}
	whereClause := fmt.Sprintf("%s = ?", DocumentColumn.ID)
	result := r.db.WithContext(ctx).Model(&DocumentModel{}).Where(whereClause, docID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found. id: {%v}", docID)
	}
	return nil
}

// MarkDocumentFailed sets the terminal failed status and persists the error
// message so the client can surface it.
func (r *repository) MarkDocumentFailed(ctx context.Context, docID string, message string) error {
	updates := map[string]interface{}{
		DocumentColumn.Status:           DocumentStatusFailed,
		DocumentColumn.ExtractedContent: ErrorDetailsLine(message),
	}
	whereClause := fmt.Sprintf("%s = ?", DocumentColumn.ID)
	return r.db.WithContext(ctx).Model(&DocumentModel{}).Where(whereClause, docID).Updates(updates).Error
}

// FinalizeDocument performs the guarded terminal write. It only applies when
// the row still carries the run's process version; a stale run reports
// applied=false and must not touch the row.
func (r *repository) FinalizeDocument(ctx context.Context, docID string, processVersion int64, update DocumentFinalUpdate) (bool, error) {
	updates := map[string]interface{}{
		DocumentColumn.Status:           update.Status,
		DocumentColumn.ExtractedContent: update.ExtractedContent,
	}
	if update.Size > 0 {
		updates[DocumentColumn.Size] = update.Size
	}
	whereClause := fmt.Sprintf("%s = ? AND %s = ?", DocumentColumn.ID, DocumentColumn.ProcessVersion)
	result := r.db.WithContext(ctx).Model(&DocumentModel{}).Where(whereClause, docID, processVersion).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeleteDocument(ctx context.Context, docID string) error {
	whereClause := fmt.Sprintf("%s = ?", DocumentColumn.ID)
	return r.db.WithContext(ctx).Where(whereClause, docID).Delete(&DocumentModel{}).Error
}
