package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

// Token usage statuses.
const (
	TokenUsageStatusSuccess = "success"
	TokenUsageStatusError   = "error"
)

// UsageI defines methods for the per-call AI usage log stored in the
// token_usage table.
type UsageI interface {
	// LogTokenUsage appends one row per AI call. Callers treat failures as
	// non-fatal; a lost usage row must never fail a processing run.
	LogTokenUsage(ctx context.Context, usage TokenUsage) error
}

// TokenUsage describes a single AI provider call.
type TokenUsage struct {
	Model    string
	Tokens   int
	Duration time.Duration
	Status   string
	ErrorMsg string
}

// TokenUsageModel represents the token_usage table structure
type TokenUsageModel struct {
	ID         string `gorm:"column:id;primaryKey" json:"id"`
	Model      string `gorm:"column:model" json:"model"`
	Tokens     int    `gorm:"column:tokens" json:"tokens"`
	DurationMS int64  `gorm:"column:duration_ms" json:"duration_ms"`
	Status     string `gorm:"column:status" json:"status"`
	Timestamp  int64  `gorm:"column:timestamp" json:"timestamp"`
	ErrorMsg   string `gorm:"column:error_msg" json:"error_msg"`
}

// TableName overrides the default table name for GORM
func (TokenUsageModel) TableName() string {
	return "token_usage"
}

func (r *repository) LogTokenUsage(ctx context.Context, usage TokenUsage) error {
	row := TokenUsageModel{
		ID:         uuid.Must(uuid.NewV4()).String(),
		Model:      usage.Model,
		Tokens:     usage.Tokens,
		DurationMS: usage.Duration.Milliseconds(),
		Status:     usage.Status,
		Timestamp:  time.Now().UnixMilli(),
		ErrorMsg:   usage.ErrorMsg,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
