package services

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"kb-research-report/internal/config"
	"kb-research-report/internal/models"
	"kb-research-report/internal/utils"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailService sends report-ready notifications via SendGrid
type EmailService struct {
	fromEmail string
	client    *sendgrid.Client
}

// NewEmailService creates a new email service. Returns nil when no API key is
// configured; notifications are optional.
func NewEmailService(cfg config.EmailConfig) *EmailService {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil
	}
	return &EmailService{
		fromEmail: cfg.FromEmail,
		client:    sendgrid.NewSendClient(cfg.APIKey),
	}
}

// SendReportReadyEmail notifies the user that their report finished, with the
// rendered document attached when available.
func (s *EmailService) SendReportReadyEmail(toEmail string, record *models.ReportRecord, document []byte) error {
	from := mail.NewEmail("Research Reports", s.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := fmt.Sprintf("Your research report is ready: %s", utils.TruncateChars(record.Task, 80))

	htmlContent := s.buildReportReadyHTML(record)
	plainContent := fmt.Sprintf(
		"Your research report is ready.\n\nTask: %s\nReport type: %s\nSources: %d\n\nThe report is attached.",
		record.Task, record.ReportType, len(record.URLs),
	)

	message := mail.NewSingleEmail(from, subject, to, plainContent, htmlContent)

	if len(document) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(document))
		if record.Format == models.FormatDOCX {
			attachment.SetType("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
			attachment.SetFilename("report.docx")
		} else {
			attachment.SetType("application/pdf")
			attachment.SetFilename("report.pdf")
		}
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (s *EmailService) buildReportReadyHTML(record *models.ReportRecord) string {
	var html bytes.Buffer

	html.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0066cc; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background-color: #f8f9fa; padding: 20px; border-radius: 0 0 8px 8px; }
        .detail-box { background-color: white; padding: 15px; border-radius: 5px; margin: 15px 0; border-left: 4px solid #0066cc; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="header">
        <h1 style="margin: 0;">Research Report Ready</h1>
    </div>
    <div class="content">
        <p>Hello,</p>
        <p>Your research report has finished generating.</p>
        <div class="detail-box">
            <h3 style="margin-top: 0; color: #0066cc;">` + record.Task + `</h3>
            <p>Report type: <strong>` + string(record.ReportType) + `</strong><br>
            Sources cited: <strong>` + fmt.Sprintf("%d", len(record.URLs)) + `</strong><br>
            Generation time: <strong>` + fmt.Sprintf("%.0f seconds", record.GenerationTime) + `</strong></p>
        </div>
        <p>The complete report is attached.</p>
    </div>
    <div class="footer">
        <p>This is an automated notification.</p>
    </div>
</body>
</html>`)

	return html.String()
}
