package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IngestFile is one row of the ingestion ledger.
type IngestFile struct {
	ID                 string
	BatchID            string
	CompanyID          string
	Name               string
	Status             string // "pending", "uploading", "succeeded", "failed"
	FilePath           string
	DocumentsProcessed int
	Error              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Conversion is a successful capability call kept for the history view.
type Conversion struct {
	ID         string
	CreatedAt  time.Time
	Capability string
	Context    string
	InputText  string
	OutputJSON string
}
