package models

import "time"

// ReportStatus represents the lifecycle state of a report generation run
type ReportStatus string

const (
	ReportStatusPending ReportStatus = "pending"
	ReportStatusSuccess ReportStatus = "success"
	ReportStatusFailure ReportStatus = "failure"
)

// ReportType selects the generation strategy
type ReportType string

const (
	ReportTypeResearch ReportType = "research" // single-pass, no decomposition
	ReportTypeDetailed ReportType = "detailed"
	ReportTypeComplete ReportType = "complete"
	ReportTypeSubtopic ReportType = "subtopic"
)

// ReportSource selects where source material comes from
type ReportSource string

const (
	SourceExternal    ReportSource = "external"
	SourceMyDocuments ReportSource = "my_documents"
	SourceHybrid      ReportSource = "hybrid"
)

// ReportFormat is the requested rendered document format
type ReportFormat string

const (
	FormatPDF  ReportFormat = "pdf"
	FormatDOCX ReportFormat = "docx"
)

// ReportTask is the immutable input to one report generation run
type ReportTask struct {
	Task           string       `bson:"task" json:"task"`
	ReportType     ReportType   `bson:"reportType" json:"reportType"`
	Source         ReportSource `bson:"source" json:"source"`
	Format         ReportFormat `bson:"format" json:"format"`
	Subtopics      []string     `bson:"subtopics,omitempty" json:"subtopics,omitempty"`
	URLs           []string     `bson:"urls,omitempty" json:"urls,omitempty"`
	RestrictSearch bool         `bson:"restrictSearch" json:"restrictSearch"`
}

// Table is a table extracted from a scraped page. Values holds data rows;
// each row maps a column index (as a string, for BSON compatibility) to the
// cell text. Rows with no surviving cell are dropped at extraction time.
type Table struct {
	Title  string              `bson:"title" json:"title"`
	Header []string            `bson:"header" json:"header"`
	Values []map[string]string `bson:"values" json:"values"`
}

// ReportTables bundles the extracted tables with their spreadsheet export path
type ReportTables struct {
	Data []Table `bson:"data,omitempty" json:"data,omitempty"`
	Path string  `bson:"path,omitempty" json:"path,omitempty"`
}

// ReportAudio describes the optional narration artifact
type ReportAudio struct {
	Exists bool   `bson:"exists" json:"exists"`
	Text   string `bson:"text,omitempty" json:"text,omitempty"`
	Path   string `bson:"path,omitempty" json:"path,omitempty"`
}

// ReportRecord is the persisted report entity. It is created as Pending before
// any pipeline work starts and mutated exactly once to Success or Failure.
type ReportRecord struct {
	ID             string       `bson:"_id" json:"id"`
	UserID         string       `bson:"userId" json:"userId"`
	Status         ReportStatus `bson:"status" json:"status"`
	Task           string       `bson:"task" json:"task"`
	ReportType     ReportType   `bson:"reportType" json:"reportType"`
	Source         ReportSource `bson:"source" json:"source"`
	Format         ReportFormat `bson:"format" json:"format"`
	Report         string       `bson:"report" json:"report"`
	ReportPath     string       `bson:"reportPath,omitempty" json:"reportPath,omitempty"`
	Tables         ReportTables `bson:"tables" json:"tables"`
	URLs           []string     `bson:"urls" json:"urls"` // deduplicated source set
	Audio          ReportAudio  `bson:"reportAudio" json:"reportAudio"`
	CorrelationID  string       `bson:"correlationId,omitempty" json:"correlationId,omitempty"`
	CreatedOn      time.Time    `bson:"createdOn" json:"createdOn"`
	GenerationTime float64      `bson:"generationTimeSeconds" json:"generationTimeSeconds"`
}

// Subtopic is one decomposition unit produced by the planner. It lives only
// for the duration of a run and is not separately persisted.
type Subtopic struct {
	Task string `json:"task"`
}

// SearchResult is a ranked candidate source returned by a retriever
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// ScrapedDocument is the extracted content of one fetched page. Only its URL
// and tables outlive the run (folded into the ReportRecord).
type ScrapedDocument struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	PublishDate string   `json:"publishDate,omitempty"`
	TopImage    string   `json:"topImage,omitempty"`
	Text        string   `json:"text"`
	Keywords    []string `json:"keywords,omitempty"`
	Tables      []Table  `json:"tables,omitempty"`
}
