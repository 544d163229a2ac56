package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

func (rt *Router) getTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	tx, err := rt.txs.GetTransaction(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (rt *Router) getTransactionDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	// Ownership check before listing.
	if _, err := rt.txs.GetTransaction(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.txs.GetTransactionDocuments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) updateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	tx, err := rt.txs.UpdateTransactionStatus(r.Context(), r.PathValue("id"), userID, status)
	if rt.metrics != nil {
		rt.metrics.RecordStatusOverride(status, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (rt *Router) exportTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	tx, err := rt.txs.GetTransaction(r.Context(), id, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.txs.GetTransactionDocuments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	book, err := buildTransactionWorkbook(tx, docs)
	if err != nil {
		writeError(w, err)
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transaction-"+tx.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	if err := book.Write(w); err != nil {
		slog.Error("transaction_export_write_failed",
			"request_id", requestIDFromContext(r.Context()),
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}
