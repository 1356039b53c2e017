package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SystemSettingsID is the primary key of the single global settings row.
const SystemSettingsID = "global"

// Default model names used when the settings row is missing or a field is
// empty. Operators override them through the system_settings table.
const (
	DefaultOCRModel       = "gemini-2.5-flash"
	DefaultAnalysisModel  = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

// SystemI defines methods for the global runtime configuration stored in the
// system_settings table.
type SystemI interface {
	// GetSystemConfig retrieves the global runtime configuration. A missing
	// row or missing fields fall back to the defaults.
	GetSystemConfig(ctx context.Context) (*SystemConfig, error)
	// UpdateSystemConfig overwrites the global runtime configuration.
	UpdateSystemConfig(ctx context.Context, cfg SystemConfig) error
}

// SystemConfig is the JSON payload of the global settings row.
type SystemConfig struct {
	OCRModel       string `json:"ocrModel"`
	AnalysisModel  string `json:"analysisModel"`
	EmbeddingModel string `json:"embeddingModel"`
}

// SystemSettingsModel represents the system_settings table structure
type SystemSettingsModel struct {
	ID         string         `gorm:"column:id;primaryKey" json:"id"`
	Data       datatypes.JSON `gorm:"column:data;type:json;not null" json:"data"`
	UpdateTime time.Time      `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

// TableName overrides the default table name for GORM
func (SystemSettingsModel) TableName() string {
	return "system_settings"
}

// applyDefaults fills empty fields with the built-in model names.
func (c *SystemConfig) applyDefaults() {
	if c.OCRModel == "" {
		c.OCRModel = DefaultOCRModel
	}
	if c.AnalysisModel == "" {
		c.AnalysisModel = DefaultAnalysisModel
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
}

func (r *repository) GetSystemConfig(ctx context.Context) (*SystemConfig, error) {
	if cached, err := r.getCachedSystemConfig(ctx); err == nil && cached != nil {
		return cached, nil
	}

	cfg := SystemConfig{}
	var row SystemSettingsModel
	err := r.db.WithContext(ctx).Where("id = ?", SystemSettingsID).First(&row).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load system settings: %w", err)
	}
	if err == nil && len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode system settings: %w", err)
		}
	}

	cfg.applyDefaults()
	r.setCachedSystemConfig(ctx, &cfg)
	return &cfg, nil
}

func (r *repository) UpdateSystemConfig(ctx context.Context, cfg SystemConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode system settings: %w", err)
	}

	row := SystemSettingsModel{ID: SystemSettingsID, Data: datatypes.JSON(data)}
	err = r.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return err
	}

	r.invalidateCachedSystemConfig(ctx)
	return nil
}
