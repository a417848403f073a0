package ingest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newIngestRouter(c Cycler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/ingest")
	NewHandler(NewScheduler(c, time.Hour, nil)).RegisterRoutes(g, g)
	return r
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	r := newIngestRouter(&fakeCycler{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ingest/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var body struct {
		Status string          `json:"status"`
		Last   json.RawMessage `json:"last"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "idle" || string(body.Last) != "null" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestTriggerThenStatus(t *testing.T) {
	r := newIngestRouter(&fakeCycler{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest/run", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var run struct {
		Status string      `json:"status"`
		Joined bool        `json:"joined"`
		Report CycleReport `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Status != "done" || run.Joined || run.Report.Created != 1 {
		t.Fatalf("unexpected run body %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ingest/status", nil))
	var status struct {
		Status string      `json:"status"`
		Last   CycleReport `json:"last"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ok" || status.Last.Created != 1 {
		t.Fatalf("unexpected status body %s", w.Body.String())
	}
}

func TestTriggerFailedCycle(t *testing.T) {
	r := newIngestRouter(&fakeCycler{err: errors.New("feed down")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest/run", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestTriggerWhileLockedElsewhere(t *testing.T) {
	r := newIngestRouter(&fakeCycler{err: ErrCycleLocked})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ingest/run", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}
