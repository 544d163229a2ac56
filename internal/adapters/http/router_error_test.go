package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/tradeflow/internal/config"
	"github.com/kirillkom/tradeflow/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrDocumentNotFound, http.StatusNotFound},
		{domain.ErrTransactionNotFound, http.StatusNotFound},
		{domain.ErrTransitionRejected, http.StatusUnprocessableEntity},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrTemporary, http.StatusServiceUnavailable},
		{domain.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := domain.WrapError(tc.kind, "op", errors.New("cause"))
		if got := mapErrorToHTTPStatus(err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&ingestFake{},
		docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
		&txServiceFake{},
		nil,
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	req.Header.Set(userIDHeader, "user-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetDocumentOfAnotherUserReturns404(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set(userIDHeader, "user-2")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestPersistenceErrorHidesDetails(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&ingestFake{},
		docsFake{err: domain.WrapError(domain.ErrPersistence, "get", errors.New("dial tcp 10.0.0.1:5432"))},
		&txServiceFake{},
		nil,
		nil,
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set(userIDHeader, "user-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if body := res.Body.String(); body != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestMissingUserHeaderReturns400(t *testing.T) {
	handler := newTestHandler(config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/tx-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
