package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/core/ports"
	"github.com/kirillkom/tradeflow/internal/observability/metrics"
)

const userIDHeader = "X-User-Id"

type Router struct {
	cfg      config.Config
	ingestUC ports.DocumentIngestor
	docs     ports.DocumentReader
	txs      ports.TransactionService
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

// NewRouter builds the API router. httpMetrics may be nil; a nil logger uses slog.Default.
func NewRouter(
	cfg config.Config,
	ingestUC ports.DocumentIngestor,
	docs ports.DocumentReader,
	txs ports.TransactionService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		ingestUC: ingestUC,
		docs:     docs,
		txs:      txs,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	mux.HandleFunc("GET /v1/transactions/{id}", rt.getTransaction)
	mux.HandleFunc("GET /v1/transactions/{id}/documents", rt.getTransactionDocuments)
	mux.HandleFunc("PATCH /v1/transactions/{id}/status", rt.updateTransactionStatus)
	mux.HandleFunc("GET /v1/transactions/{id}/export", rt.exportTransaction)

	var onReject func()
	if rt.metrics != nil {
		onReject = rt.metrics.RecordRateLimited
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		userID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc.UserID != userID {
		writeError(w, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id)))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": userIDHeader + " header is required"})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
