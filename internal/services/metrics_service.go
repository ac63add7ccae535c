package services

import (
	"context"
	"log"
	"time"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// MetricsService records pipeline timings to InfluxDB. The sink is optional;
// a nil service is safe to call and records nothing.
type MetricsService struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewMetricsService creates a metrics sink, or nil when InfluxDB is not
// configured.
func NewMetricsService(cfg config.InfluxDBConfig) *MetricsService {
	if cfg.URL == "" || cfg.Token == "" {
		return nil
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &MetricsService{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// RecordStage writes the duration of one pipeline stage
func (s *MetricsService) RecordStage(reportType models.ReportType, stage string, duration time.Duration) {
	if s == nil {
		return
	}
	point := influxdb2.NewPoint(
		"report_stage",
		map[string]string{
			"stage":       stage,
			"report_type": string(reportType),
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)
	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		log.Printf("WARNING: failed to write stage metric: %v", err)
	}
}

// RecordRun writes the outcome and total duration of one report run
func (s *MetricsService) RecordRun(reportType models.ReportType, status models.ReportStatus, duration time.Duration, subtopics int) {
	if s == nil {
		return
	}
	point := influxdb2.NewPoint(
		"report_run",
		map[string]string{
			"report_type": string(reportType),
			"status":      string(status),
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"subtopics":   subtopics,
		},
		time.Now(),
	)
	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		log.Printf("WARNING: failed to write run metric: %v", err)
	}
}

// Close flushes and shuts down the InfluxDB client
func (s *MetricsService) Close() {
	if s == nil {
		return
	}
	s.client.Close()
}
