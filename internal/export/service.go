package export

import "fmt"

// Service turns an assembled sermon document into a downloadable file.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Export(doc SermonDocument, format Format) (*Result, error) {
	html, err := RenderHandoutHTML(doc)
	if err != nil {
		return nil, fmt.Errorf("render handout: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, doc.Title)
	case FormatDOCX:
		return exportDOCX(html, doc.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
