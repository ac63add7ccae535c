package services

import (
	"log"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
)

// QuotaStore is the persistence slice quota accounting needs
type QuotaStore interface {
	GetRemainingUnits(userID string) (float64, error)
	ConsumeUnits(userID string, cost float64) error
}

// QuotaService gates report generation on the user's remaining allowance and
// consumes units after a successful run. Costs are business policy carried in
// configuration.
type QuotaService struct {
	store  QuotaStore
	config config.QuotaConfig
}

// NewQuotaService creates a quota service over the given store
func NewQuotaService(store QuotaStore, cfg config.QuotaConfig) *QuotaService {
	return &QuotaService{store: store, config: cfg}
}

// Cost returns the quota units one report of the given type consumes
func (s *QuotaService) Cost(reportType models.ReportType) float64 {
	switch reportType {
	case models.ReportTypeResearch:
		return s.config.ResearchCost
	case models.ReportTypeDetailed:
		return s.config.DetailedCost
	case models.ReportTypeComplete:
		return s.config.CompleteCost
	case models.ReportTypeSubtopic:
		return s.config.SubtopicCost
	default:
		return s.config.ResearchCost
	}
}

// HasRemainingQuota reports whether the user can afford a report of the given
// type. A store error fails open with a warning; quota is an allowance
// mechanism, not a security boundary.
func (s *QuotaService) HasRemainingQuota(userID string, reportType models.ReportType) bool {
	if !s.config.Enabled {
		return true
	}
	remaining, err := s.store.GetRemainingUnits(userID)
	if err != nil {
		log.Printf("WARNING: quota check failed for user %s, allowing request: %v", userID, err)
		return true
	}
	return remaining >= s.Cost(reportType)
}

// ConsumeReportQuota deducts the cost of a completed report. Called only on
// success; failed runs do not consume allowance.
func (s *QuotaService) ConsumeReportQuota(userID string, reportType models.ReportType) {
	if !s.config.Enabled {
		return
	}
	if err := s.store.ConsumeUnits(userID, s.Cost(reportType)); err != nil {
		log.Printf("WARNING: failed to consume quota for user %s: %v", userID, err)
	}
}
