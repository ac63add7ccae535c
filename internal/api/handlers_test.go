package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson"
)

type stubStore struct{ inserted int }

func (s *stubStore) InsertReport(*models.ReportRecord) error { s.inserted++; return nil }

func (s *stubStore) UpdateReport(string, bson.M) (int64, error) { return 1, nil }

type stubSink struct{}

func (stubSink) Emit(string, models.ProgressEvent) {}

type stubQuotaStore struct{ remaining float64 }

func (s stubQuotaStore) GetRemainingUnits(string) (float64, error) { return s.remaining, nil }

func (stubQuotaStore) ConsumeUnits(string, float64) error { return nil }

// newTestHandlers builds handlers over an un-started pipeline: Submit
// enqueues but nothing consumes, which is all these endpoint tests need.
func newTestHandlers(queueSize int, quotaRemaining float64) (*Handlers, *stubStore) {
	store := &stubStore{}
	cfg := config.PipelineConfig{QueueSize: queueSize, Workers: 1, MaxSubtopics: 3}

	reportService := services.NewReportService(cfg, services.ReportServiceDeps{
		Store: store,
		Sink:  stubSink{},
	})
	quotaService := services.NewQuotaService(stubQuotaStore{remaining: quotaRemaining}, config.QuotaConfig{
		Enabled:      true,
		ResearchCost: 0.5,
		DetailedCost: 1.0,
	})
	return NewHandlers(reportService, quotaService, nil, nil), store
}

func postGenerate(handlers *Handlers, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/reports/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(context.Background())
	c.Set("userId", "user-1")
	handlers.GenerateReportHandler(c)
	return w
}

func TestGenerateReportAccepted(t *testing.T) {
	handlers, store := newTestHandlers(4, 10)

	w := postGenerate(handlers, `{"task": "impact of remote work"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "reportId")
	assert.Contains(t, w.Body.String(), "pending")
	assert.Equal(t, 1, store.inserted)
}

func TestGenerateReportValidation(t *testing.T) {
	handlers, store := newTestHandlers(4, 10)

	cases := []string{
		`{}`,
		`{"task": "   "}`,
		`{"task": "x", "reportType": "bogus"}`,
		`{"task": "x", "source": "bogus"}`,
		`{"task": "x", "format": "pptx"}`,
		`not json`,
	}
	for _, body := range cases {
		w := postGenerate(handlers, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
	assert.Zero(t, store.inserted, "invalid requests never reach the store")
}

func TestGenerateReportQuotaExceeded(t *testing.T) {
	handlers, store := newTestHandlers(4, 0)

	w := postGenerate(handlers, `{"task": "x", "reportType": "detailed"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Zero(t, store.inserted)
}

func TestGenerateReportBackpressure(t *testing.T) {
	handlers, _ := newTestHandlers(1, 10)

	first := postGenerate(handlers, `{"task": "x"}`)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postGenerate(handlers, `{"task": "y"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
