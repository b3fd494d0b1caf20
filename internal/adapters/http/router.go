// Package httpadapter exposes the upload, analysis, and interaction
// endpoints. Interaction events are published to the queue and never block
// or fail the caller's request.
package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/ports"
	"github.com/enrichd/enrichd/internal/observability/metrics"
)

const serviceName = "enrichd-api"

type Router struct {
	ingest      ports.DocumentIngestor
	documents   ports.DocumentRepository
	enrichments ports.EnrichmentRepository
	queue       ports.InteractionQueue
	metrics     *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
}

type RouterOptions struct {
	Metrics        *metrics.HTTPServerMetrics
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(
	ingest ports.DocumentIngestor,
	documents ports.DocumentRepository,
	enrichments ports.EnrichmentRepository,
	queue ports.InteractionQueue,
	options RouterOptions,
) *Router {
	return &Router{
		ingest:         ingest,
		documents:      documents,
		enrichments:    enrichments,
		queue:          queue,
		metrics:        options.Metrics,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocuments)
	mux.HandleFunc("/v1/analysis", rt.getAnalysis)
	mux.HandleFunc("/v1/interactions", rt.postInteraction)

	var handler http.Handler = mux
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadDocuments accepts a multipart batch: product_id (a UUID), optional
// questions_json, and one or more files. questions_json is either a JSON
// array applying to every file, or a JSON object keyed by filename.
// Documents are stored unprocessed and picked up by the worker later.
func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	productID := strings.TrimSpace(r.FormValue("product_id"))
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}

	questionsFor, err := parseQuestions(r.FormValue("questions_json"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	docs := make([]*domain.Document, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		file, err := fileHeader.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("open %s: %v", fileHeader.Filename, err)})
			return
		}

		doc, err := rt.ingest.Upload(
			r.Context(),
			productID,
			fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"),
			questionsFor(fileHeader.Filename),
			file,
		)
		file.Close()
		if err != nil {
			writeError(w, err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordUploadSize(serviceName, doc.FileSize)
		}
		docs = append(docs, doc)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"documents": docs})
}

// getAnalysis returns the enrichment for the newest document with the given
// filename. Viewing a summary is itself an auditable interaction, so a
// view event is published on success.
func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}

	doc, err := rt.documents.GetByFilename(r.Context(), filename)
	if err != nil {
		writeError(w, err)
		return
	}
	enr, err := rt.enrichments.GetByDocumentID(r.Context(), doc.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		rt.publishInteraction(r.Context(), domain.InteractionEvent{
			UserID:       userID,
			UserName:     strings.TrimSpace(r.URL.Query().Get("user_name")),
			Filename:     doc.Filename,
			DocumentID:   doc.ID,
			EnrichmentID: enr.ID,
			Event:        map[string]any{"action": "view_summary"},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":   doc.ID,
		"enrichment_id": enr.ID,
		"filename":      doc.Filename,
		"model":         enr.Model,
		"summary":       enr.Summary,
		"qa":            enr.QA,
		"created_at":    enr.CreatedAt,
	})
}

func (rt *Router) postInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(event.UserID) == "" || strings.TrimSpace(event.Filename) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and filename are required"})
		return
	}

	rt.publishInteraction(r.Context(), event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// publishInteraction is fire-and-forget: a queue failure is logged and
// counted but never surfaces to the client.
func (rt *Router) publishInteraction(ctx context.Context, event domain.InteractionEvent) {
	err := rt.queue.PublishInteraction(ctx, event)
	if rt.metrics != nil {
		rt.metrics.RecordInteractionPublish(serviceName, err)
	}
	if err != nil {
		slog.Warn("interaction publish failed",
			"request_id", requestIDFromContext(ctx),
			"user_id", event.UserID,
			"filename", event.Filename,
			"error", err,
		)
	}
}

// parseQuestions resolves the questions_json form field into a per-filename
// lookup. A list form applies to all files; a map form is keyed by the
// uploaded filename, with files absent from the map getting no questions.
func parseQuestions(raw string) (func(filename string) []string, error) {
	none := func(string) []string { return nil }
	if raw == "" {
		return none, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return func(string) []string { return list }, nil
	}

	var byFile map[string][]string
	if err := json.Unmarshal([]byte(raw), &byFile); err == nil {
		return func(filename string) []string { return byFile[filename] }, nil
	}

	return nil, fmt.Errorf("questions_json must be a JSON array of strings or an object keyed by filename")
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
