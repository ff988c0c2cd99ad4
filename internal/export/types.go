// Package export renders a sermon as a printable handout in PDF or DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// SermonDocument is the assembled handout content. The application layer
// builds it from the sermon, its bible sources, and the grouped canvas.
type SermonDocument struct {
	Title     string
	Category  string
	Status    string
	Author    string
	UpdatedAt time.Time
	Sources   []SourceSection
	Groups    []GroupSection
}

// SourceSection is one bible source quoted at the top of the handout.
type SourceSection struct {
	Reference string
	Text      string
}

// GroupSection is one anchor with its insight notes, in canvas order.
type GroupSection struct {
	AnchorType    string
	AnchorContent string
	Insights      []InsightSection
}

type InsightSection struct {
	Type    string
	Content string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
