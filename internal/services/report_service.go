package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull is returned by Submit when the run queue is at capacity
var ErrQueueFull = errors.New("report queue is full")

// ReportStore is the persistence slice the pipeline needs
type ReportStore interface {
	InsertReport(record *models.ReportRecord) error
	UpdateReport(id string, fields bson.M) (int64, error)
}

// ProgressSink receives lifecycle events for live subscribers. Delivery is
// fire-and-forget; the pipeline never depends on it.
type ProgressSink interface {
	Emit(userID string, event models.ProgressEvent)
}

// DocumentExcerpter supplies excerpts from the user's private document index
type DocumentExcerpter interface {
	Excerpts(ctx context.Context, userID, query string) []string
}

// ReportService owns the report generation pipeline: a bounded run queue
// consumed by a fixed worker pool, each run driving
// plan -> (parallel retrieve/scrape/synthesize per subtopic) -> merge ->
// render -> persist. A record moves Pending -> Success or Pending -> Failure
// exactly once.
type ReportService struct {
	config    config.PipelineConfig
	store     ReportStore
	sink      ProgressSink
	retriever Retriever
	docs      DocumentExcerpter // nil when the document index is unavailable
	scraper   *Scraper
	builder   *ContextBuilder
	planner   *Planner
	synth     *Synthesizer
	output    *OutputService
	quota     *QuotaService   // nil disables quota accounting
	metrics   *MetricsService // nil-safe
	email     *EmailService   // nil disables notifications

	maxSearchResults int

	submitMutex sync.Mutex // makes the queue vacancy check and send atomic
	queue       chan reportRun
	wg          sync.WaitGroup
}

type reportRun struct {
	record    models.ReportRecord
	task      models.ReportTask
	userEmail string
}

// ReportServiceDeps bundles the pipeline's collaborators
type ReportServiceDeps struct {
	Store            ReportStore
	Sink             ProgressSink
	Retriever        Retriever
	Documents        DocumentExcerpter
	Scraper          *Scraper
	ContextBuilder   *ContextBuilder
	Planner          *Planner
	Synthesizer      *Synthesizer
	Output           *OutputService
	Quota            *QuotaService
	Metrics          *MetricsService
	Email            *EmailService
	MaxSearchResults int
}

// NewReportService creates the pipeline orchestrator
func NewReportService(cfg config.PipelineConfig, deps ReportServiceDeps) *ReportService {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 32
	}
	return &ReportService{
		config:           cfg,
		store:            deps.Store,
		sink:             deps.Sink,
		retriever:        deps.Retriever,
		docs:             deps.Documents,
		scraper:          deps.Scraper,
		builder:          deps.ContextBuilder,
		planner:          deps.Planner,
		synth:            deps.Synthesizer,
		output:           deps.Output,
		quota:            deps.Quota,
		metrics:          deps.Metrics,
		email:            deps.Email,
		maxSearchResults: deps.MaxSearchResults,
		queue:            make(chan reportRun, queueSize),
	}
}

// Start launches the worker pool. Workers exit when the context is canceled
// or the queue is closed by Stop.
func (s *ReportService) Start(ctx context.Context) {
	workers := s.config.Workers
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case run, ok := <-s.queue:
					if !ok {
						return
					}
					s.run(ctx, run)
				}
			}
		}()
	}
	log.Printf("Report pipeline started with %d worker(s), queue size %d", workers, cap(s.queue))
}

// Stop drains the queue and waits for in-flight runs to finish
func (s *ReportService) Stop() {
	close(s.queue)
	s.wg.Wait()
}

// Submit persists a Pending record, emits the pending event, and enqueues the
// run. Returns ErrQueueFull without creating a record when the queue is at
// capacity; the caller translates that into backpressure.
func (s *ReportService) Submit(userID, userEmail string, task models.ReportTask, correlationID string) (string, error) {
	// Workers only ever drain the queue, so under the lock a passed vacancy
	// check guarantees the send below cannot block. Without it two
	// concurrent submits could both pass the check for one free slot and
	// the loser would park on the send inside the HTTP handler.
	s.submitMutex.Lock()
	defer s.submitMutex.Unlock()

	if len(s.queue) >= cap(s.queue) {
		return "", ErrQueueFull
	}

	record := models.ReportRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        models.ReportStatusPending,
		Task:          task.Task,
		ReportType:    task.ReportType,
		Source:        task.Source,
		Format:        task.Format,
		CorrelationID: correlationID,
		CreatedOn:     time.Now().UTC(),
	}
	if err := s.store.InsertReport(&record); err != nil {
		return "", err
	}

	s.sink.Emit(userID, models.ProgressEvent{
		Event:         models.EventReportPending,
		ReportID:      record.ID,
		CorrelationID: correlationID,
	})

	s.queue <- reportRun{record: record, userEmail: userEmail, task: task}
	return record.ID, nil
}

type subtopicResult struct {
	markdown string
	urls     []string
	tables   []models.Table
}

// run executes one report generation end to end. Every failure path funnels
// through fail() so the record gets exactly one terminal write.
func (s *ReportService) run(ctx context.Context, run reportRun) {
	record := run.record
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: report %s panicked: %v", record.ID, r)
			s.fail(&record, started)
		}
	}()

	log.Printf("Generating %s report %s for user %s: %q", record.ReportType, record.ID, record.UserID, record.Task)

	planStart := time.Now()
	subtopics, err := s.planner.Plan(ctx, run.task)
	s.metrics.RecordStage(record.ReportType, "plan", time.Since(planStart))
	if err != nil {
		log.Printf("ERROR: planning failed for report %s: %v", record.ID, err)
		s.fail(&record, started)
		return
	}

	researchStart := time.Now()
	results := s.processSubtopics(ctx, record.UserID, run.task, subtopics)
	s.metrics.RecordStage(record.ReportType, "research", time.Since(researchStart))

	var drafts []string
	var urls []string
	var tables []models.Table
	for _, result := range results {
		drafts = append(drafts, result.markdown)
		urls = append(urls, result.urls...)
		tables = append(tables, result.tables...)
	}

	mergeStart := time.Now()
	merged := s.synth.MergeSubtopics(ctx, record.Task, drafts)
	s.metrics.RecordStage(record.ReportType, "merge", time.Since(mergeStart))

	if merged == "" {
		log.Printf("WARNING: all subtopics produced empty drafts for report %s", record.ID)
		s.fail(&record, started)
		return
	}

	record.URLs = utils.DedupStrings(urls)
	record.Report = merged + BuildSourcesSection(record.URLs)
	record.Tables.Data = tables

	renderStart := time.Now()
	document := s.output.Assemble(ctx, &record, started)
	s.metrics.RecordStage(record.ReportType, "render", time.Since(renderStart))

	record.Status = models.ReportStatusSuccess
	record.GenerationTime = time.Since(started).Seconds()

	update := bson.M{
		"status":                record.Status,
		"report":                record.Report,
		"reportPath":            record.ReportPath,
		"tables":                record.Tables,
		"urls":                  record.URLs,
		"reportAudio":           record.Audio,
		"generationTimeSeconds": record.GenerationTime,
	}
	if _, err := s.store.UpdateReport(record.ID, update); err != nil {
		log.Printf("ERROR: failed to persist report %s: %v", record.ID, err)
		s.emitFailure(&record)
		return
	}

	s.sink.Emit(record.UserID, models.ProgressEvent{
		Event:         models.EventReportSuccess,
		ReportID:      record.ID,
		CorrelationID: record.CorrelationID,
		Payload:       record,
	})

	if s.quota != nil {
		s.quota.ConsumeReportQuota(record.UserID, record.ReportType)
	}
	s.metrics.RecordRun(record.ReportType, models.ReportStatusSuccess, time.Since(started), len(subtopics))

	if s.email != nil && run.userEmail != "" {
		if err := s.email.SendReportReadyEmail(run.userEmail, &record, document); err != nil {
			log.Printf("WARNING: failed to send report-ready email for %s: %v", record.ID, err)
		}
	}

	log.Printf("Report %s completed in %.1fs with %d source(s)", record.ID, record.GenerationTime, len(record.URLs))
}

// processSubtopics fans the subtopics out with bounded parallelism. A
// subtopic failure (or panic) contributes an empty result; siblings are
// never aborted.
func (s *ReportService) processSubtopics(ctx context.Context, userID string, task models.ReportTask, subtopics []models.Subtopic) []subtopicResult {
	concurrency := s.config.SubtopicConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	results := make([]subtopicResult, len(subtopics))
	group := &errgroup.Group{}
	group.SetLimit(concurrency)

	for i, subtopic := range subtopics {
		i, subtopic := i, subtopic
		group.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("ERROR: subtopic %q panicked: %v", subtopic.Task, r)
					results[i] = subtopicResult{}
				}
			}()
			results[i] = s.processSubtopic(ctx, userID, task, subtopic)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// processSubtopic runs retrieve -> scrape -> build context -> synthesize for
// one subtopic.
func (s *ReportService) processSubtopic(ctx context.Context, userID string, task models.ReportTask, subtopic models.Subtopic) subtopicResult {
	var searchResults []models.SearchResult
	var candidateURLs []string

	if task.Source != models.SourceMyDocuments {
		if task.RestrictSearch && len(task.URLs) > 0 {
			candidateURLs = task.URLs
		} else {
			searchResults = s.retriever.Search(ctx, subtopic.Task, s.maxSearchResults)
			for _, result := range searchResults {
				candidateURLs = append(candidateURLs, result.URL)
			}
			candidateURLs = append(candidateURLs, task.URLs...)
		}
		candidateURLs = utils.DedupStrings(candidateURLs)
	}

	var scraped []models.ScrapedDocument
	if len(candidateURLs) > 0 {
		scraped = s.scraper.Scrape(ctx, candidateURLs)
	}

	var docExcerpts []string
	if task.Source != models.SourceExternal && s.docs != nil {
		docExcerpts = s.docs.Excerpts(ctx, userID, subtopic.Task)
	}

	contextText := s.builder.Build(subtopic.Task, searchResults, scraped, docExcerpts)

	draft, err := s.synth.SynthesizeSubtopic(ctx, task.Task, subtopic, contextText)
	if err != nil {
		log.Printf("WARNING: %v", err)
		draft = ""
	}

	result := subtopicResult{markdown: draft}
	if draft != "" {
		for _, doc := range scraped {
			result.urls = append(result.urls, doc.URL)
			result.tables = append(result.tables, doc.Tables...)
		}
	}
	return result
}

// fail applies the terminal Failure write and emits the failure event. The
// failure payload carries task identifiers only, never a partial report.
func (s *ReportService) fail(record *models.ReportRecord, started time.Time) {
	record.Status = models.ReportStatusFailure
	record.GenerationTime = time.Since(started).Seconds()

	update := bson.M{
		"status":                record.Status,
		"generationTimeSeconds": record.GenerationTime,
	}
	if _, err := s.store.UpdateReport(record.ID, update); err != nil {
		log.Printf("ERROR: failed to persist failure for report %s: %v", record.ID, err)
	}

	s.emitFailure(record)
	s.metrics.RecordRun(record.ReportType, models.ReportStatusFailure, time.Since(started), 0)
}

func (s *ReportService) emitFailure(record *models.ReportRecord) {
	s.sink.Emit(record.UserID, models.ProgressEvent{
		Event:         models.EventReportFailure,
		ReportID:      record.ID,
		CorrelationID: record.CorrelationID,
		Payload: map[string]string{
			"task":       record.Task,
			"reportType": string(record.ReportType),
		},
	})
}
