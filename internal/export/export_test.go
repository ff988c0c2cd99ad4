package export

import (
	"strings"
	"testing"
	"time"
)

func TestRenderHandoutHTML(t *testing.T) {
	doc := SermonDocument{
		Title:     "A Graça Abundante",
		Category:  "Evangelística",
		Author:    "Lucas",
		UpdatedAt: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		Sources: []SourceSection{
			{Reference: "Efésios 2:8", Text: "Porque pela graça sois salvos"},
		},
		Groups: []GroupSection{
			{
				AnchorType:    "TEXTO_BASE",
				AnchorContent: "Porque pela graça sois salvos, por meio da fé",
				Insights: []InsightSection{
					{Type: "EXEGESE", Content: "A salvação é dom de Deus"},
				},
			},
		},
	}

	html, err := RenderHandoutHTML(doc)
	if err != nil {
		t.Fatalf("RenderHandoutHTML() error = %v", err)
	}
	for _, want := range []string{
		"A Graça Abundante",
		"Efésios 2:8",
		"TEXTO_BASE",
		"A salvação é dom de Deus",
		"09/03/2025",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("handout HTML missing %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"A Graça Abundante", "A-Graa-Abundante"},
		{"Sermão v1.2", "Sermo-v12"},
		{"", "sermao"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"graça", "gra%C3%A7a"},
		{"aplicação", "aplica%C3%A7%C3%A3o"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := percentEncodeForDataURL(tt.input); got != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
