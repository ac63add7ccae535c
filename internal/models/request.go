package models

// GenerateReportRequest is the body of POST /api/reports/generate
type GenerateReportRequest struct {
	Task           string       `json:"task" binding:"required"`
	ReportType     ReportType   `json:"reportType"`
	Source         ReportSource `json:"source"`
	Format         ReportFormat `json:"format"`
	CorrelationID  string       `json:"correlationId,omitempty"`
	Subtopics      []string     `json:"subtopics,omitempty"`
	URLs           []string     `json:"urls,omitempty"`
	RestrictSearch bool         `json:"restrictSearch,omitempty"`
}

// ToTask converts a request into the immutable pipeline input, applying
// defaults for omitted enum fields.
func (r GenerateReportRequest) ToTask() ReportTask {
	task := ReportTask{
		Task:           r.Task,
		ReportType:     r.ReportType,
		Source:         r.Source,
		Format:         r.Format,
		Subtopics:      r.Subtopics,
		URLs:           r.URLs,
		RestrictSearch: r.RestrictSearch,
	}
	if task.ReportType == "" {
		task.ReportType = ReportTypeResearch
	}
	if task.Source == "" {
		task.Source = SourceExternal
	}
	if task.Format == "" {
		task.Format = FormatPDF
	}
	return task
}

// GenerateReportResponse acknowledges an accepted generation run
type GenerateReportResponse struct {
	ReportID string `json:"reportId"`
	Status   string `json:"status"`
}

// Progress event names emitted over the live-progress sink
const (
	EventReportPending = "report_pending"
	EventReportSuccess = "report_success"
	EventReportFailure = "report_failure"
)

// ProgressEvent is the payload pushed to websocket subscribers
type ProgressEvent struct {
	Event         string      `json:"event"`
	ReportID      string      `json:"reportId"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Payload       interface{} `json:"payload,omitempty"`
}
