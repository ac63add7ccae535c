package services

import (
	"errors"
	"testing"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"

	"github.com/stretchr/testify/assert"
)

type erroringQuotaStore struct{}

func (erroringQuotaStore) GetRemainingUnits(string) (float64, error) {
	return 0, errors.New("db down")
}

func (erroringQuotaStore) ConsumeUnits(string, float64) error {
	return errors.New("db down")
}

func quotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		Enabled:      true,
		ResearchCost: 0.5,
		DetailedCost: 1.0,
		CompleteCost: 1.0,
		SubtopicCost: 0.5,
	}
}

func TestQuotaCosts(t *testing.T) {
	quota := NewQuotaService(&fakeQuotaStore{}, quotaConfig())
	assert.Equal(t, 0.5, quota.Cost(models.ReportTypeResearch))
	assert.Equal(t, 1.0, quota.Cost(models.ReportTypeDetailed))
	assert.Equal(t, 1.0, quota.Cost(models.ReportTypeComplete))
	assert.Equal(t, 0.5, quota.Cost(models.ReportTypeSubtopic))
}

func TestQuotaGate(t *testing.T) {
	store := &fakeQuotaStore{remaining: 0.5}
	quota := NewQuotaService(store, quotaConfig())

	assert.True(t, quota.HasRemainingQuota("u", models.ReportTypeResearch))
	assert.False(t, quota.HasRemainingQuota("u", models.ReportTypeDetailed))
}

func TestQuotaDisabled(t *testing.T) {
	cfg := quotaConfig()
	cfg.Enabled = false
	store := &fakeQuotaStore{remaining: 0}
	quota := NewQuotaService(store, cfg)

	assert.True(t, quota.HasRemainingQuota("u", models.ReportTypeComplete))
	quota.ConsumeReportQuota("u", models.ReportTypeComplete)
	assert.Empty(t, store.consumed)
}

func TestQuotaFailsOpenOnStoreError(t *testing.T) {
	quota := NewQuotaService(erroringQuotaStore{}, quotaConfig())
	assert.True(t, quota.HasRemainingQuota("u", models.ReportTypeDetailed))
}

func TestQuotaConsume(t *testing.T) {
	store := &fakeQuotaStore{remaining: 5}
	quota := NewQuotaService(store, quotaConfig())

	quota.ConsumeReportQuota("u", models.ReportTypeResearch)
	assert.Equal(t, []float64{0.5}, store.consumed)
}
