package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"
)

// OutputService renders a finished report's artifacts (document, table
// export, narration audio) and resolves their storage paths. Every render is
// best-effort: a failed artifact is logged and skipped, never failing the
// report itself.
type OutputService struct {
	storage FileStorage
	pdf     *PDFService
	docx    *DocxService
	excel   *ExcelService
	audio   *AudioService
	config  config.OutputConfig
}

// NewOutputService creates an output assembler over the given storage backend
func NewOutputService(storage FileStorage, llm LLMClient, cfg config.OutputConfig) *OutputService {
	return &OutputService{
		storage: storage,
		pdf:     NewPDFService(),
		docx:    NewDocxService(),
		excel:   NewExcelService(),
		audio:   NewAudioService(llm, cfg),
		config:  cfg,
	}
}

// Assemble renders all artifacts for a successful run and sets the path
// fields on the record. The run folder name is derived from the task, source
// and start time so repeated identical tasks do not collide. Returns the
// rendered document bytes for reuse (email attachment), nil when the
// document render failed.
func (s *OutputService) Assemble(ctx context.Context, record *models.ReportRecord, startedAt time.Time) []byte {
	folder := fmt.Sprintf("%s/report_outputs/%s", record.UserID, utils.OutputFolderName(record.Task, string(record.Source), startedAt))

	docData, path, err := s.renderDocument(ctx, folder, record.Format, record.Report)
	if err != nil {
		log.Printf("WARNING: failed to render %s for report %s: %v", record.Format, record.ID, err)
	} else {
		record.ReportPath = path
	}

	if len(record.Tables.Data) > 0 {
		if path, err := s.renderTables(ctx, folder, record.Tables.Data); err != nil {
			log.Printf("WARNING: failed to render table export for report %s: %v", record.ID, err)
		} else {
			record.Tables.Path = path
		}
	}

	if s.config.AudioEnabled {
		s.renderAudio(ctx, folder, record)
	}
	return docData
}

func (s *OutputService) renderDocument(ctx context.Context, folder string, format models.ReportFormat, markdown string) ([]byte, string, error) {
	var data []byte
	var err error
	var filename string

	switch format {
	case models.FormatDOCX:
		filename = "report.docx"
		data, err = s.docx.Render(markdown)
	default:
		filename = "report.pdf"
		data, err = s.pdf.Render(markdown)
	}
	if err != nil {
		return nil, "", err
	}

	key := folder + "/" + filename
	if err := s.storage.Write(ctx, key, data); err != nil {
		return nil, "", err
	}
	return data, s.storage.Location(key), nil
}

func (s *OutputService) renderTables(ctx context.Context, folder string, tables []models.Table) (string, error) {
	data, err := s.excel.Render(tables)
	if err != nil {
		return "", err
	}
	key := folder + "/tables.xlsx"
	if err := s.storage.Write(ctx, key, data); err != nil {
		return "", err
	}
	return s.storage.Location(key), nil
}

// renderAudio fills the record's audio fields. Narration is skipped when the
// report has no text before its first section heading.
func (s *OutputService) renderAudio(ctx context.Context, folder string, record *models.ReportRecord) {
	narration := ExtractNarration(record.Report)
	if narration == "" {
		return
	}

	data, err := s.audio.Generate(ctx, narration)
	if err != nil {
		log.Printf("WARNING: failed to generate narration for report %s: %v", record.ID, err)
		return
	}

	key := folder + "/report_audio.wav"
	if err := s.storage.Write(ctx, key, data); err != nil {
		log.Printf("WARNING: failed to store narration for report %s: %v", record.ID, err)
		return
	}

	record.Audio = models.ReportAudio{
		Exists: true,
		Text:   narration,
		Path:   s.storage.Location(key),
	}
}
