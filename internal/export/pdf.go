package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"dietchain/internal/pipeline"
	"dietchain/internal/report"
)

// PDFTableRows is the number of eat / avoid rows printed in exports.
const PDFTableRows = 12

const disclaimer = "This document is for information only and is not a substitute for professional medical advice."

// Section is one titled block of text in an export.
type Section struct {
	Heading string
	Body    string
}

// RunSections lists the stage outputs of a run in execution order.
func RunSections(pc *pipeline.PipelineContext) []Section {
	headings := map[pipeline.StageName]string{
		pipeline.StageTranslate:     "Your Report Explained",
		pipeline.StageRecommendDiet: "Diet Recommendations",
		pipeline.StageMealPlan:      "7-Day Meal Plan",
	}
	sections := make([]Section, 0, len(pc.Outputs))
	for _, o := range pc.Outputs {
		h, ok := headings[o.Stage]
		if !ok {
			h = string(o.Stage)
		}
		sections = append(sections, Section{Heading: h, Body: o.Text})
	}
	return sections
}

// ReportSections lists the stored parts of a report.
func ReportSections(r *report.Report) []Section {
	return []Section{
		{Heading: "Detected Conditions", Body: strings.Join(r.Conditions, ", ")},
		{Heading: "Your Report Explained", Body: r.Translation},
		{Heading: "Diet Recommendations", Body: r.DietRecommendation},
		{Heading: "7-Day Meal Plan", Body: r.MealPlan},
	}
}

// RunPDF writes a PDF with the given sections. The eat / avoid table is printed
// after the first section when foods is not empty.
func RunPDF(w io.Writer, title string, generated time.Time, sections []Section, foods pipeline.FoodList) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(latin(s)) }

	pdf.SetTitle(title, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(160, 6, text(disclaimer), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 90, 60)
	pdf.CellFormat(0, 10, text(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated "+generated.Format("January 2, 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for i, s := range sections {
		writeSection(pdf, text, s)
		if i == 0 && !foods.Empty() {
			writeFoodTable(pdf, text, foods)
		}
	}
	if len(sections) == 0 && !foods.Empty() {
		writeFoodTable(pdf, text, foods)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	return pdf.Output(w)
}

func writeSection(pdf *fpdf.Fpdf, text func(string) string, s Section) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(20, 90, 60)
	pdf.CellFormat(0, 8, text(s.Heading), "B", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetTextColor(30, 30, 30)
	for _, line := range strings.Split(s.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			pdf.Ln(2)
			continue
		}
		style := ""
		if strings.HasPrefix(line, "#") || (strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**")) {
			style = "B"
		}
		line = strings.TrimSpace(strings.TrimLeft(strings.ReplaceAll(line, "**", ""), "#"))
		pdf.SetFont("Helvetica", style, 10)
		pdf.MultiCell(0, 5, text(line), "", "L", false)
	}
	pdf.Ln(4)
}

func writeFoodTable(pdf *fpdf.Fpdf, text func(string) string, foods pipeline.FoodList) {
	const colW = 90
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(220, 240, 225)
	pdf.CellFormat(colW, 7, "Foods to Eat", "1", 0, "C", true, 0, "")
	pdf.SetFillColor(245, 222, 222)
	pdf.CellFormat(colW, 7, "Foods to Avoid", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range foods.Rows(PDFTableRows) {
		pdf.CellFormat(colW, 6, text(row.Eat), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW, 6, text(row.Avoid), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

// latin replaces characters the core PDF fonts cannot show.
func latin(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '•', '●', '▪':
			return '-'
		case '✓', '✔':
			return '+'
		case '≤':
			return '<'
		case '≥':
			return '>'
		}
		if r > 0x2122 {
			return -1
		}
		return r
	}, s)
}
