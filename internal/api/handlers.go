package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"kb-research-report/internal/database"
	"kb-research-report/internal/events"
	"kb-research-report/internal/middleware"
	"kb-research-report/internal/models"
	"kb-research-report/internal/services"

	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	reportService *services.ReportService
	quotaService  *services.QuotaService
	mongoClient   *database.MongoDBClient
	hub           *events.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	reportService *services.ReportService,
	quotaService *services.QuotaService,
	mongoClient *database.MongoDBClient,
	hub *events.Hub,
) *Handlers {
	return &Handlers{
		reportService: reportService,
		quotaService:  quotaService,
		mongoClient:   mongoClient,
		hub:           hub,
	}
}

// GenerateReportHandler handles POST /api/reports/generate. The pipeline is
// asynchronous: the handler answers 202 with the report id and the client
// follows progress over the websocket or by polling.
func (h *Handlers) GenerateReportHandler(c *gin.Context) {
	var req models.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Task) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task must not be empty"})
		return
	}

	task := req.ToTask()
	if !validReportType(task.ReportType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reportType"})
		return
	}
	if !validSource(task.Source) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}
	if task.Format != models.FormatPDF && task.Format != models.FormatDOCX {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format"})
		return
	}

	userID := middleware.UserID(c)
	if h.quotaService != nil && !h.quotaService.HasRemainingQuota(userID, task.ReportType) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "report quota exceeded"})
		return
	}

	reportID, err := h.reportService.Submit(userID, middleware.UserEmail(c), task, req.CorrelationID)
	if err != nil {
		if errors.Is(err, services.ErrQueueFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "report queue is full, try again later"})
			return
		}
		log.Printf("ERROR: failed to submit report for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start report generation"})
		return
	}

	c.JSON(http.StatusAccepted, models.GenerateReportResponse{
		ReportID: reportID,
		Status:   string(models.ReportStatusPending),
	})
}

// ListReportsHandler handles GET /api/reports
func (h *Handlers) ListReportsHandler(c *gin.Context) {
	userID := middleware.UserID(c)

	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.mongoClient.ListReports(userID, limit)
	if err != nil {
		log.Printf("ERROR: failed to list reports for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": records})
}

// GetReportHandler handles GET /api/reports/:reportId
func (h *Handlers) GetReportHandler(c *gin.Context) {
	userID := middleware.UserID(c)
	reportID := c.Param("reportId")

	record, err := h.mongoClient.FindReport(userID, reportID)
	if err != nil {
		log.Printf("ERROR: failed to fetch report %s: %v", reportID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch report"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListReportsByStatusHandler handles GET /api/reports/pending and /failed
func (h *Handlers) ListReportsByStatusHandler(status models.ReportStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)
		records, err := h.mongoClient.ListReportsByStatus(userID, status)
		if err != nil {
			log.Printf("ERROR: failed to list %s reports for user %s: %v", status, userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": records})
	}
}

// DeleteReportHandler handles DELETE /api/reports/:reportId
func (h *Handlers) DeleteReportHandler(c *gin.Context) {
	userID := middleware.UserID(c)
	reportID := c.Param("reportId")

	deleted, err := h.mongoClient.DeleteReport(userID, reportID)
	if err != nil {
		log.Printf("ERROR: failed to delete report %s: %v", reportID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report"})
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetQuotaHandler handles GET /api/reports/quota
func (h *Handlers) GetQuotaHandler(c *gin.Context) {
	userID := middleware.UserID(c)
	remaining, err := h.mongoClient.GetRemainingUnits(userID)
	if err != nil {
		log.Printf("ERROR: failed to fetch quota for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch quota"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"remainingUnits": remaining})
}

// ProgressHandler handles GET /ws: upgrades to a websocket that streams the
// user's report lifecycle events.
func (h *Handlers) ProgressHandler(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.hub.Subscribe(userID, c.Writer, c.Request); err != nil {
		log.Printf("WARNING: websocket upgrade failed for user %s: %v", userID, err)
	}
}

// HealthHandler handles GET /health
func (h *Handlers) HealthHandler(c *gin.Context) {
	if err := h.mongoClient.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func validReportType(t models.ReportType) bool {
	switch t {
	case models.ReportTypeResearch, models.ReportTypeDetailed, models.ReportTypeComplete, models.ReportTypeSubtopic:
		return true
	}
	return false
}

func validSource(s models.ReportSource) bool {
	switch s {
	case models.SourceExternal, models.SourceMyDocuments, models.SourceHybrid:
		return true
	}
	return false
}
