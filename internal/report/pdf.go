package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Renderer turns report data into PDF bytes.
type Renderer interface {
	Render(data Data) ([]byte, error)
}

// PDFRenderer renders a simple A4 document: a title line followed by
// one labeled paragraph per field. Layout fidelity is not a goal here.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(data Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 10, data.Title, "", "L", false)
	pdf.Ln(4)

	for _, f := range data.Fields {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(0, 7, f.Label, "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, f.Value, "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
