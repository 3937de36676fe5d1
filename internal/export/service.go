package export

import (
	"fmt"
	"html/template"
	"strings"
)

// Service renders saved content for download.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export generates an export in the requested format.
func (s *Service) Export(req Request) (*Result, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, ErrContentUnavailable
	}

	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}

	html, err := RenderDocumentHTML(TemplateData{
		Title:       title,
		ContentType: req.ContentType,
		ContentHTML: template.HTML(DraftToHTML(req.Body)),
		Author:      req.Author,
		SavedAt:     req.SavedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, title)
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
