package models

import (
	"time"
)

// ExportKind distinguishes exported artifacts
type ExportKind string

const (
	ExportAudio ExportKind = "audio"
	ExportImage ExportKind = "image"
)

// ExportRecord logs one export. It never carries card content.
type ExportRecord struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID string     `gorm:"index;size:64" json:"session_id"`
	Kind      ExportKind `gorm:"size:16" json:"kind"`
	Filename  string     `gorm:"size:255" json:"filename"`
	Handle    string     `gorm:"size:255" json:"handle"`
	Bytes     int64      `json:"bytes"`
	CreatedAt time.Time  `json:"created_at"`
}
