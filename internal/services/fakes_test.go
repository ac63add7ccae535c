package services

import (
	"context"
	"strings"
	"sync"

	"kb-research-report/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// fakeLLM scripts completion behavior per call type. The planner is
// recognized by JSON mode, the merge call by its system prompt; everything
// else is treated as subtopic synthesis.
type fakeLLM struct {
	mutex sync.Mutex

	planJSON   string
	planErr    error
	mergeText  string
	mergeErr   error
	synthText  func(userPrompt string) (string, error)
	embeddings map[string][]float32
	speechWAV  []byte
	speechErr  error

	completions []string
}

func (f *fakeLLM) Complete(_ context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	f.mutex.Lock()
	f.completions = append(f.completions, userPrompt)
	f.mutex.Unlock()

	switch {
	case opts.JSONMode:
		return f.planJSON, f.planErr
	case strings.Contains(systemPrompt, "editor"):
		return f.mergeText, f.mergeErr
	default:
		if f.synthText != nil {
			return f.synthText(userPrompt)
		}
		return "## Section\n\nDraft text.", nil
	}
}

func (f *fakeLLM) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.embeddings[text]; ok {
			out[i] = vec
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (f *fakeLLM) Speech(context.Context, string) ([]byte, error) {
	return f.speechWAV, f.speechErr
}

// fakeStore records report persistence calls
type fakeStore struct {
	mutex   sync.Mutex
	records map[string]*models.ReportRecord
	updates map[string][]bson.M
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*models.ReportRecord),
		updates: make(map[string][]bson.M),
	}
}

func (s *fakeStore) InsertReport(record *models.ReportRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateReport(id string, fields bson.M) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.updates[id] = append(s.updates[id], fields)
	if record, ok := s.records[id]; ok {
		if status, ok := fields["status"].(models.ReportStatus); ok {
			record.Status = status
		}
		if report, ok := fields["report"].(string); ok {
			record.Report = report
		}
	}
	return 1, nil
}

func (s *fakeStore) terminalWrites(id string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.updates[id])
}

func (s *fakeStore) record(id string) models.ReportRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return *s.records[id]
}

// fakeSink buffers emitted progress events
type fakeSink struct {
	events chan models.ProgressEvent
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan models.ProgressEvent, 32)}
}

func (s *fakeSink) Emit(_ string, event models.ProgressEvent) {
	s.events <- event
}

// fakeRetriever returns a fixed result list for every query
type fakeRetriever struct {
	results []models.SearchResult
}

func (r *fakeRetriever) Search(context.Context, string, int) []models.SearchResult {
	return r.results
}
