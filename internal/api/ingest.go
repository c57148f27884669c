package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tonegate/internal/gateway"
	"github.com/kalambet/tonegate/internal/storage"
	"github.com/kalambet/tonegate/internal/validate"
)

const maxIngestBodySize = 64 << 20 // 64MB across all files
const maxMultipartMemory = 8 << 20

// HistoryEntry is one stored conversion as returned by the API.
type HistoryEntry struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Capability string          `json:"capability"`
	Context    string          `json:"context,omitempty"`
	InputText  string          `json:"input_text"`
	Output     json.RawMessage `json:"output"`
}

// NewHistoryEntry converts a stored conversion for output.
func NewHistoryEntry(c storage.Conversion) HistoryEntry {
	out := json.RawMessage(c.OutputJSON)
	if !json.Valid(out) {
		out = json.RawMessage("null")
	}
	return HistoryEntry{
		ID:         c.ID,
		CreatedAt:  c.CreatedAt,
		Capability: c.Capability,
		Context:    c.Context,
		InputText:  c.InputText,
		Output:     out,
	}
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart body: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		companyID := strings.TrimSpace(r.FormValue("company_id"))
		if companyID == "" {
			companyID = deps.CompanyID
		}

		headers := r.MultipartForm.File["file"]
		files := make([]gateway.UploadFile, 0, len(headers))
		var opened []multipart.File
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read %s: %v", fh.Filename, err)
				return
			}
			opened = append(opened, f)
			files = append(files, gateway.UploadFile{Name: fh.Filename, Body: f})
		}

		report, err := deps.Router.IngestBatch(r.Context(), companyID, files)
		if err != nil {
			if validate.Is(err, validate.InvalidField) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "ingestion failed: %v", err)
			return
		}

		succeeded, failed := report.Counts()
		deps.logger().Info("ingestion batch finished",
			"batch_id", report.BatchID, "company_id", companyID,
			"succeeded", succeeded, "failed", failed)
		writeJSON(w, http.StatusOK, report)
	}
}

func handleIngestStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := chi.URLParam(r, "batch")

		rows, err := deps.Store.ListIngestFiles(batchID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "batch not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list batch: %v", err)
			return
		}

		report := gateway.BatchReport{BatchID: batchID, CompanyID: rows[0].CompanyID}
		for _, row := range rows {
			report.Files = append(report.Files, gateway.FileReport{
				ID:                 row.ID,
				Name:               row.Name,
				Status:             gateway.FileStatus(row.Status),
				FilePath:           row.FilePath,
				DocumentsProcessed: row.DocumentsProcessed,
				Error:              row.Error,
			})
		}
		if name := r.URL.Query().Get("file"); name != "" {
			f, ok := report.File(name)
			if !ok {
				httpError(w, http.StatusNotFound, "not_found", "file %q not found in batch", name)
				return
			}
			writeJSON(w, http.StatusOK, f)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		convs, err := deps.Store.ListConversions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}

		entries := make([]HistoryEntry, 0, len(convs))
		for _, c := range convs {
			entries = append(entries, NewHistoryEntry(c))
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleGetHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetConversion(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "conversion not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get conversion: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, NewHistoryEntry(c))
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
