package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neunhoef/resource-manager/internal/apilog"
	"github.com/neunhoef/resource-manager/internal/confighub"
	"github.com/neunhoef/resource-manager/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	l, err := apilog.New(1<<20, 4)
	if err != nil {
		t.Fatal(err)
	}
	hub := confighub.New(confighub.Table{})
	return New(l, hub, metrics.New())
}

func TestHandleRecentReturnsLoggedCalls(t *testing.T) {
	s := newTestServer(t)
	s.log.Record("GET", "/x", 200, 0)

	req := httptest.NewRequest(http.MethodGet, "/recent", nil)
	rec := httptest.NewRecorder()
	s.HTTPHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got []apilog.CallRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Path != "/x" {
		t.Fatalf("unexpected recent calls: %+v", got)
	}
}

func TestHandleConfigGetAndPost(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(confighub.Table{Routes: []confighub.Route{{Prefix: "/v1", Backend: "svc"}}})
	req := httptest.NewRequest(http.MethodPost, "/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.HTTPHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/config", nil)
	rec = httptest.NewRecorder()
	s.HTTPHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var table confighub.Table
	if err := json.Unmarshal(rec.Body.Bytes(), &table); err != nil {
		t.Fatal(err)
	}
	if len(table.Routes) != 1 || table.Routes[0].Backend != "svc" {
		t.Fatalf("unexpected routing table: %+v", table)
	}
}

func TestHandleConfigRejectsOtherMethods(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/config", nil)
	rec := httptest.NewRecorder()
	s.HTTPHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
