package db

import (
	"time"

	"github.com/google/uuid"
)

type ImportRun struct {
	ID          uuid.UUID
	Category    string
	Mode        string
	Filename    string
	FileSha256  string
	Status      string
	RowsTotal   int32
	Succeeded   int32
	Failed      int32
	SummaryJson []byte
	RequestID   *string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type ImportRowResult struct {
	ID          int64
	ImportRunID uuid.UUID
	RowNumber   int32
	Severity    string
	Kind        *string
	Result      string
	NaturalKey  string
	Message     string
	RecordID    *int32
	CreatedAt   time.Time
}

type AuditLog struct {
	ID         int64
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  *string
	Metadata   []byte
	CreatedAt  time.Time
}
