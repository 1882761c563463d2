package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Bartkosa/MemoWrite/internal/extract"
)

// PDFService loads uploaded PDFs into page-addressable documents.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// PDFDocument holds the extracted text of every page. Pages whose text layer
// is missing or empty read back as blank.
type PDFDocument struct {
	pages []string
}

var _ extract.Document = (*PDFDocument)(nil)

func (d *PDFDocument) PageCount() int { return len(d.pages) }

func (d *PDFDocument) PageText(i int) (string, bool) {
	if i < 0 || i >= len(d.pages) || d.pages[i] == "" {
		return "", false
	}
	return d.pages[i], true
}

// LoadPDF extracts the text of every page up front and releases the file.
// A page that fails text extraction is kept as blank rather than failing the
// whole document; scanned pages routinely have no text layer.
func (s *PDFService) LoadPDF(path string) (*PDFDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = strings.TrimSpace(text)
	}

	return &PDFDocument{pages: pages}, nil
}
