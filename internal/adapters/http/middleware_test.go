package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/tradeflow/internal/config"
)

func decodeAccessLog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode access log: %v (%q)", err, buf.String())
	}
	return record
}

func TestAccessLogIncludesUserAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewRouter(config.Config{}, &ingestFake{}, docsFake{}, &txServiceFake{}, nil, logger).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set(userIDHeader, "user-1")
	req.Header.Set(requestIDHeader, "req-42")
	req.RemoteAddr = "10.1.2.3:5555"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", res.Header().Get(requestIDHeader))
	}
	record := decodeAccessLog(t, &buf)
	if record["msg"] != "http_request" {
		t.Fatalf("unexpected message: %v", record["msg"])
	}
	if record["user_id"] != "user-1" || record["request_id"] != "req-42" {
		t.Fatalf("missing identifiers: %v", record)
	}
	if record["remote_addr"] != "10.1.2.3" || record["path"] != "/v1/documents/doc-1" {
		t.Fatalf("unexpected request attributes: %v", record)
	}
	if int(record["status"].(float64)) != res.Code {
		t.Fatalf("logged status %v, response %d", record["status"], res.Code)
	}
}

func TestAccessLogWarnsOnClientErrorsWithoutUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := NewRouter(config.Config{}, &ingestFake{}, docsFake{}, &txServiceFake{}, nil, logger).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	record := decodeAccessLog(t, &buf)
	if record["level"] != "WARN" {
		t.Fatalf("expected WARN level, got %v", record["level"])
	}
	if _, ok := record["user_id"]; ok {
		t.Fatalf("expected no user_id attribute, got %v", record["user_id"])
	}
	if record["request_id"] == "" {
		t.Fatalf("expected generated request id")
	}
}
