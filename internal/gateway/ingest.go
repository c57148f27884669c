package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tonegate/internal/reconcile"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/validate"
)

// FileStatus is the lifecycle state of one file in an ingestion batch.
type FileStatus string

const (
	StatusPending   FileStatus = "pending"
	StatusUploading FileStatus = "uploading"
	StatusSucceeded FileStatus = "succeeded"
	StatusFailed    FileStatus = "failed"
)

// UploadFile is one document submitted for ingestion.
type UploadFile struct {
	Name string
	Body io.Reader
}

// FileReport is the final state of one file.
type FileReport struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Status             FileStatus `json:"status"`
	FilePath           string     `json:"file_path,omitempty"`
	DocumentsProcessed int        `json:"documents_processed,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// BatchReport aggregates per-file outcomes. There is no batch-level
// success flag: each file stands on its own.
type BatchReport struct {
	BatchID   string       `json:"batch_id"`
	CompanyID string       `json:"company_id"`
	Files     []FileReport `json:"files"`
}

// Counts returns how many files succeeded and failed.
func (b BatchReport) Counts() (succeeded, failed int) {
	for _, f := range b.Files {
		switch f.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		}
	}
	return succeeded, failed
}

// File returns the report for the named file.
func (b BatchReport) File(name string) (FileReport, bool) {
	for _, f := range b.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileReport{}, false
}

// IngestBatch uploads and registers every file concurrently. Registration
// (phase 2) runs only after that file's upload (phase 1) succeeded. A failed
// file never affects the others and is not retried. The error is reserved
// for invalid input.
func (r *Router) IngestBatch(ctx context.Context, companyID string, files []UploadFile) (BatchReport, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return BatchReport{}, &validate.Error{Kind: validate.InvalidField, Field: "company_id", Detail: "required"}
	}
	if len(files) == 0 {
		return BatchReport{}, &validate.Error{Kind: validate.InvalidField, Field: "files", Detail: "at least one file is required"}
	}

	report := BatchReport{
		BatchID:   r.newID(),
		CompanyID: companyID,
		Files:     make([]FileReport, len(files)),
	}
	for i, f := range files {
		report.Files[i] = FileReport{ID: r.newID(), Name: f.Name, Status: StatusPending}
		r.recordStatus(report, report.Files[i])
	}

	r.logger.Info("ingesting batch", "batch_id", report.BatchID, "company_id", companyID, "files", len(files))

	var g errgroup.Group
	g.SetLimit(r.ingestLimit)
	for i := range files {
		g.Go(func() error {
			r.ingestOne(ctx, report, &report.Files[i], files[i])
			return nil
		})
	}
	_ = g.Wait()

	succeeded, failed := report.Counts()
	r.logger.Info("batch finished", "batch_id", report.BatchID, "succeeded", succeeded, "failed", failed)
	return report, nil
}

func (r *Router) ingestOne(ctx context.Context, batch BatchReport, fr *FileReport, f UploadFile) {
	fr.Status = StatusUploading
	r.recordStatus(batch, *fr)

	fail := func(msg string) {
		fr.Status = StatusFailed
		fr.Error = msg
		r.recordStatus(batch, *fr)
		r.logger.Warn("ingest file failed", "batch_id", batch.BatchID, "file", fr.Name, "error", msg)
	}

	up, err := r.upload(ctx, f)
	if err != nil {
		fail(err.Error())
		return
	}
	if !up.OK {
		fail(up.Failure.Message)
		return
	}
	fr.FilePath = up.Value.(reconcile.UploadReceipt).FilePath

	reg, err := r.callJSON(ctx, CapRAGIngest, "", IngestRequest{CompanyID: batch.CompanyID, FolderPath: fr.FilePath})
	if err != nil {
		fail(err.Error())
		return
	}
	if !reg.OK {
		fail(reg.Failure.Message)
		return
	}

	receipt := reg.Value.(reconcile.IngestReceipt)
	fr.Status = StatusSucceeded
	fr.DocumentsProcessed = receipt.DocumentsProcessed
	r.recordStatus(batch, *fr)
}

// upload sends the raw bytes of f as a multipart "file" part.
func (r *Router) upload(ctx context.Context, f UploadFile) (reconcile.Result, error) {
	if f.Body == nil {
		return reconcile.Result{}, fmt.Errorf("file %q has no content", f.Name)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return reconcile.Result{}, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	if err := mw.Close(); err != nil {
		return reconcile.Result{}, fmt.Errorf("closing multipart body: %w", err)
	}
	return r.call(ctx, CapRAGUpload, "", &buf, mw.FormDataContentType())
}

func (r *Router) recordStatus(batch BatchReport, fr FileReport) {
	if r.ledger == nil {
		return
	}
	err := r.ledger.RecordIngestStatus(storage.IngestFile{
		ID:                 fr.ID,
		BatchID:            batch.BatchID,
		CompanyID:          batch.CompanyID,
		Name:               fr.Name,
		Status:             string(fr.Status),
		FilePath:           fr.FilePath,
		DocumentsProcessed: fr.DocumentsProcessed,
		Error:              fr.Error,
		UpdatedAt:          r.now().UTC(),
	})
	if err != nil {
		r.logger.Warn("recording ingest status", "file", fr.Name, "status", fr.Status, "error", err)
	}
}
