package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuotaStore struct {
	mutex     sync.Mutex
	remaining float64
	consumed  []float64
}

func (s *fakeQuotaStore) GetRemainingUnits(string) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.remaining, nil
}

func (s *fakeQuotaStore) ConsumeUnits(_ string, cost float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.consumed = append(s.consumed, cost)
	return nil
}

type pipelineFixture struct {
	service    *ReportService
	store      *fakeStore
	sink       *fakeSink
	quotaStore *fakeQuotaStore
	cancel     context.CancelFunc
}

func newPipelineFixture(t *testing.T, llm *fakeLLM, retriever Retriever) *pipelineFixture {
	t.Helper()

	store := newFakeStore()
	sink := newFakeSink()
	quotaStore := &fakeQuotaStore{remaining: 10}

	outputCfg := config.OutputConfig{
		Dir:             t.TempDir(),
		ContextMaxChars: 10000,
		AudioEnabled:    false,
		AudioChunkChars: 4000,
	}
	quotaCfg := config.QuotaConfig{
		Enabled:      true,
		ResearchCost: 0.5,
		DetailedCost: 1.0,
		CompleteCost: 1.0,
		SubtopicCost: 0.5,
	}
	scraperCfg := testScraperConfig()
	scraperCfg.MinTextLength = 50

	pipelineCfg := testPipelineConfig()

	service := NewReportService(pipelineCfg, ReportServiceDeps{
		Store:            store,
		Sink:             sink,
		Retriever:        retriever,
		Scraper:          NewScraper(scraperCfg),
		ContextBuilder:   NewContextBuilder(outputCfg.ContextMaxChars),
		Planner:          NewPlanner(llm, pipelineCfg),
		Synthesizer:      NewSynthesizer(llm, "smart-model", pipelineCfg),
		Output:           NewOutputService(NewLocalStorage(outputCfg.Dir), llm, outputCfg),
		Quota:            NewQuotaService(quotaStore, quotaCfg),
		MaxSearchResults: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	service.Start(ctx)
	t.Cleanup(cancel)

	return &pipelineFixture{
		service:    service,
		store:      store,
		sink:       sink,
		quotaStore: quotaStore,
		cancel:     cancel,
	}
}

func (f *pipelineFixture) waitEvent(t *testing.T) models.ProgressEvent {
	t.Helper()
	select {
	case event := <-f.sink.events:
		return event
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for progress event")
		return models.ProgressEvent{}
	}
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>Source Article</title></head><body><p>%s</p></body></html>`,
			strings.Repeat("Substantive article text about the research question. ", 5))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestReportLifecycleSuccess(t *testing.T) {
	server := articleServer(t)

	llm := &fakeLLM{
		planJSON: `{"subtopics": [{"task": "alpha"}, {"task": "beta"}]}`,
		synthText: func(prompt string) (string, error) {
			return "## Findings\n\nDraft grounded in sources.", nil
		},
		mergeText: "# Impact of Remote Work\n\nIntroduction paragraph.\n\n## Findings\n\nMerged analysis.",
	}
	// Both subtopics cite the same source URL
	retriever := &fakeRetriever{results: []models.SearchResult{
		{URL: server.URL, Title: "Source Article", Snippet: "snippet"},
	}}

	fixture := newPipelineFixture(t, llm, retriever)

	task := models.GenerateReportRequest{
		Task:       "impact of remote work on productivity",
		ReportType: models.ReportTypeDetailed,
	}.ToTask()
	reportID, err := fixture.service.Submit("user-1", "", task, "corr-9")
	require.NoError(t, err)
	require.NotEmpty(t, reportID)

	pending := fixture.waitEvent(t)
	assert.Equal(t, models.EventReportPending, pending.Event)
	assert.Equal(t, reportID, pending.ReportID)
	assert.Equal(t, "corr-9", pending.CorrelationID)

	success := fixture.waitEvent(t)
	require.Equal(t, models.EventReportSuccess, success.Event)

	record, ok := success.Payload.(models.ReportRecord)
	require.True(t, ok, "success payload carries the full record")
	assert.Equal(t, models.ReportStatusSuccess, record.Status)
	assert.Contains(t, record.Report, "Merged analysis")
	assert.Contains(t, record.Report, "## Sources")
	assert.Equal(t, []string{server.URL}, record.URLs, "URL cited by both subtopics appears once")
	assert.Greater(t, record.GenerationTime, 0.0)

	// Rendered document is resolvable on disk
	require.NotEmpty(t, record.ReportPath)
	_, err = os.Stat(record.ReportPath)
	assert.NoError(t, err)

	// Exactly one terminal write, quota consumed on success
	assert.Equal(t, 1, fixture.store.terminalWrites(reportID))
	assert.Equal(t, []float64{1.0}, fixture.quotaStore.consumed)
}

func TestReportPartialFailureTolerated(t *testing.T) {
	server := articleServer(t)

	llm := &fakeLLM{
		planJSON: `{"subtopics": [{"task": "alpha"}, {"task": "beta"}, {"task": "gamma"}]}`,
		synthText: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Assigned subtopic: beta") {
				return "", errors.New("provider timeout")
			}
			if strings.Contains(prompt, "Assigned subtopic: alpha") {
				return "## Alpha\n\nalpha findings", nil
			}
			return "## Gamma\n\ngamma findings", nil
		},
		mergeErr: errors.New("force concatenation fallback"),
	}
	retriever := &fakeRetriever{results: []models.SearchResult{
		{URL: server.URL, Title: "Source Article", Snippet: "snippet"},
	}}

	fixture := newPipelineFixture(t, llm, retriever)

	task := models.GenerateReportRequest{
		Task:       "benefits of X",
		ReportType: models.ReportTypeDetailed,
	}.ToTask()
	reportID, err := fixture.service.Submit("user-1", "", task, "")
	require.NoError(t, err)

	assert.Equal(t, models.EventReportPending, fixture.waitEvent(t).Event)
	success := fixture.waitEvent(t)
	require.Equal(t, models.EventReportSuccess, success.Event)

	record := fixture.store.record(reportID)
	assert.Equal(t, models.ReportStatusSuccess, record.Status)
	assert.Contains(t, record.Report, "alpha findings")
	assert.Contains(t, record.Report, "gamma findings")
	assert.NotContains(t, record.Report, "beta", "failed subtopic contributes nothing")
}

func TestReportTotalFailure(t *testing.T) {
	server := articleServer(t)

	llm := &fakeLLM{
		planJSON: `{"subtopics": [{"task": "alpha"}, {"task": "beta"}]}`,
		synthText: func(string) (string, error) {
			return "", errors.New("provider down")
		},
	}
	retriever := &fakeRetriever{results: []models.SearchResult{
		{URL: server.URL, Title: "Source Article", Snippet: "snippet"},
	}}

	fixture := newPipelineFixture(t, llm, retriever)

	task := models.GenerateReportRequest{Task: "benefits of X", ReportType: models.ReportTypeDetailed}.ToTask()
	reportID, err := fixture.service.Submit("user-1", "", task, "")
	require.NoError(t, err)

	assert.Equal(t, models.EventReportPending, fixture.waitEvent(t).Event)
	failure := fixture.waitEvent(t)
	require.Equal(t, models.EventReportFailure, failure.Event)

	payload, ok := failure.Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "benefits of X", payload["task"])
	assert.NotContains(t, payload, "report", "failure payload carries identifiers only")

	record := fixture.store.record(reportID)
	assert.Equal(t, models.ReportStatusFailure, record.Status)
	assert.Empty(t, record.Report)
	assert.Equal(t, 1, fixture.store.terminalWrites(reportID))
	assert.Empty(t, fixture.quotaStore.consumed, "failed runs do not consume quota")
}

func TestReportPlannerFailure(t *testing.T) {
	llm := &fakeLLM{planErr: errors.New("model unavailable")}
	fixture := newPipelineFixture(t, llm, &fakeRetriever{})

	task := models.GenerateReportRequest{Task: "benefits of X", ReportType: models.ReportTypeComplete}.ToTask()
	reportID, err := fixture.service.Submit("user-1", "", task, "")
	require.NoError(t, err)

	assert.Equal(t, models.EventReportPending, fixture.waitEvent(t).Event)
	assert.Equal(t, models.EventReportFailure, fixture.waitEvent(t).Event)
	assert.Equal(t, models.ReportStatusFailure, fixture.store.record(reportID).Status)
}

func TestSubmitBackpressure(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()

	cfg := testPipelineConfig()
	cfg.QueueSize = 1

	// No workers started: the queue fills and stays full
	service := NewReportService(cfg, ReportServiceDeps{
		Store: store,
		Sink:  sink,
	})

	task := models.GenerateReportRequest{Task: "t"}.ToTask()
	_, err := service.Submit("user-1", "", task, "")
	require.NoError(t, err)

	_, err = service.Submit("user-1", "", task, "")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, store.records, 1, "rejected submission creates no record")
}

func TestSubmitConcurrentBackpressure(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()

	cfg := testPipelineConfig()
	cfg.QueueSize = 1

	// No workers started: the single slot never drains, so every submit
	// beyond the first must reject rather than block its caller.
	service := NewReportService(cfg, ReportServiceDeps{
		Store: store,
		Sink:  sink,
	})

	const submitters = 8
	task := models.GenerateReportRequest{Task: "t"}.ToTask()

	var wg sync.WaitGroup
	errs := make(chan error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Submit("user-1", "", task, "")
			errs <- err
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("a submit blocked on the full queue instead of rejecting")
	}
	close(errs)

	accepted, rejected := 0, 0
	for err := range errs {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, ErrQueueFull)
		rejected++
	}
	assert.Equal(t, 1, accepted, "exactly one submit takes the free slot")
	assert.Equal(t, submitters-1, rejected)
	assert.Len(t, store.records, 1, "rejected submissions create no records")
}
