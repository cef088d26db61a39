package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/receiptify/internal/analytics"
	"github.com/zombor/receiptify/internal/export"
	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/scanning"
)

// maxUploadSize bounds document uploads and backup imports (high-resolution phone photos)
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, status int, message string) {
	setCORSHeaders(w)
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error onto a status code
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case receipt.IsValidationError(err),
		errors.Is(err, receipt.ErrInvalidTheme),
		errors.Is(err, receipt.ErrUnknownCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, receipt.ErrReceiptNotFound):
		writeError(w, http.StatusNotFound, "Receipt not found")
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeAttachment sends data as a downloadable file
func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.SanitizeFilename(filename)))
	writeBody(w, data)
}

// writeBody writes a raw response body, logging a failed write
func writeBody(w http.ResponseWriter, data []byte) {
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing response", "bytes", len(data), "error", err)
	}
}

// handleListReceipts returns every receipt, newest first, optionally filtered by ?q=
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	receipts = analytics.Search(receipts, r.URL.Query().Get("q"))
	if receipts == nil {
		receipts = []*receipt.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleListMonths returns the (optionally filtered) receipts grouped by month
func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	groups := analytics.GroupByMonth(analytics.Search(receipts, r.URL.Query().Get("q")))
	if groups == nil {
		groups = []analytics.MonthGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// handleScanReceipt captures an uploaded document. A saved receipt answers
// 201; a draft for manual entry answers 202.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	result, err := s.service.Capture(r.Context(), receipt.Document{
		Filename:    header.Filename,
		ContentType: contentTypeFor(header.Header.Get("Content-Type"), header.Filename),
		Data:        data,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Receipt == nil {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// contentTypeFor falls back to the file extension when the upload has no content type
func contentTypeFor(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// manualRequest is the body of a manual entry
type manualRequest struct {
	receipt.PartialFields
	Filename string `json:"filename,omitempty"`
}

// handleCreateReceipt saves a hand-entered receipt
func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := s.service.SaveManual(r.Context(), req.PartialFields, req.Filename)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleEditReceipt replaces the fields of a receipt
func (s *Server) handleEditReceipt(w http.ResponseWriter, r *http.Request) {
	var fields receipt.PartialFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.service.Edit(r.Context(), r.PathValue("id"), fields)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleReimbursed(w http.ResponseWriter, r *http.Request) {
	updated, err := s.service.ToggleReimbursed(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	updated, err := s.service.ToggleFavorite(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleGetDocument returns the stored photo or PDF of a receipt
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if found.Image == "" {
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	data, contentType, err := scanning.ParseDataURL(found.Image)
	if err != nil {
		slog.Warn("Stored document is not a data URL", "id", found.ID, "error", err)
		writeError(w, http.StatusNotFound, "Document not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	writeBody(w, data)
}

// handleExportReceipt returns the printable document of one receipt
func (s *Server) handleExportReceipt(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data, err := export.ReceiptHTML(found)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeAttachment(w, "text/html; charset=utf-8", export.ReceiptFilename(found.Merchant, found.Date), data)
}

type analyticsResponse struct {
	Stats    analytics.Stats `json:"stats"`
	Insights []string        `json:"insights"`
}

// handleAnalytics returns totals, the category breakdown and insights
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	stats := analytics.Compute(receipts)
	writeJSON(w, http.StatusOK, analyticsResponse{
		Stats:    stats,
		Insights: analytics.Insights(receipts, stats),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// settingsRequest changes any subset of the settings. A currency code
// without a symbol is looked up in the currency table.
type settingsRequest struct {
	CurrencySymbol string        `json:"currencySymbol"`
	CurrencyCode   string        `json:"currencyCode"`
	Theme          receipt.Theme `json:"theme"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := s.service.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch {
	case req.CurrencyCode != "" && req.CurrencySymbol != "":
		settings.CurrencyCode = req.CurrencyCode
		settings.CurrencySymbol = req.CurrencySymbol
	case req.CurrencyCode != "":
		settings, err = settings.WithCurrency(req.CurrencyCode)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	case req.CurrencySymbol != "":
		settings.CurrencySymbol = req.CurrencySymbol
	}
	if req.Theme != "" {
		settings.Theme = req.Theme
	}

	if err := s.service.UpdateSettings(r.Context(), settings); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, receipt.Currencies())
}

// handleExport returns every receipt as ?format=json (default), yaml, xlsx or html
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := s.now()
	stamp := now.Format("2006-01-02")

	format := strings.ToLower(r.URL.Query().Get("format"))
	var (
		data        []byte
		contentType string
		filename    string
	)
	switch format {
	case "", "json":
		data, err = export.NewBackup(receipts, settings, now).JSON()
		contentType, filename = "application/json", "receiptify-backup-"+stamp+".json"
	case "yaml", "yml":
		data, err = export.NewBackup(receipts, settings, now).YAML()
		contentType, filename = "application/yaml", "receiptify-backup-"+stamp+".yaml"
	case "xlsx":
		data, err = export.XLSX(receipts)
		contentType, filename = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "receiptify-"+stamp+".xlsx"
	case "html":
		data, err = export.ReportHTML(receipts, analytics.Compute(receipts), settings, now)
		contentType, filename = "text/html; charset=utf-8", "receiptify-report-"+stamp+".html"
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown export format %q", format))
		return
	}
	if err != nil {
		writeServiceError(w, fmt.Errorf("exporting %s: %w", format, err))
		return
	}

	writeAttachment(w, contentType, filename, data)
}

type importResponse struct {
	Imported int `json:"imported"`
}

// handleImport restores receipts from a JSON or YAML backup. Settings are
// restored too when ?settings=true.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading backup")
		return
	}

	backup, err := export.ParseBackup(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("settings") == "true" {
		if settings, ok := backup.SavedSettings(); ok {
			if err := s.service.UpdateSettings(r.Context(), settings); err != nil {
				writeServiceError(w, err)
				return
			}
		} else {
			slog.Info("Backup has no settings, keeping current ones")
		}
	}

	n, err := s.service.Import(r.Context(), backup.Receipts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: n})
}
