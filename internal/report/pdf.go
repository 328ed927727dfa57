package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin       = 72.0
	pdfBottomMargin = 18.0
	pdfLineHeight   = 18.0
)

type rgb struct{ r, g, b int }

var (
	colorPrimary = rgb{44, 62, 80}
	colorMuted   = rgb{127, 140, 141}
	colorHeader  = rgb{52, 152, 219}
	colorStripe  = rgb{236, 240, 241}
	colorWhite   = rgb{255, 255, 255}
)

// column is a table column width in points.
type column struct {
	title string
	width float64
	align string
}

// RenderPDF writes doc as an A4 PDF. Emoji are printed by display name.
func RenderPDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfBottomMargin+pdfLineHeight)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(Brand, true)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-(pdfBottomMargin + 12))
		pdf.SetFont("Helvetica", "I", 8)
		setText(pdf, colorMuted)
		pdf.CellFormat(0, 12, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 22)
	setText(pdf, colorPrimary)
	pdf.CellFormat(0, 30, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		doc.SubjectLabel + ": " + doc.SubjectName,
		"Period: " + doc.Period,
		"Generated on: " + doc.GeneratedAtText,
	} {
		pdf.CellFormat(0, pdfLineHeight, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(12)

	section(pdf, tr, "Summary")
	summary := make([][]string, len(doc.Summary))
	for i, row := range doc.Summary {
		summary[i] = []string{row.Label, row.Plain}
	}
	table(pdf, tr, []column{
		{title: "Metric", width: 216, align: "L"},
		{title: "Value", width: 144, align: "L"},
	}, summary)

	if len(doc.Distribution) > 0 {
		section(pdf, tr, "Mood distribution")
		rows := make([][]string, len(doc.Distribution))
		for i, d := range doc.Distribution {
			rows[i] = []string{d.Name, strconv.Itoa(d.Count), d.PercentText}
		}
		table(pdf, tr, []column{
			{title: "Mood", width: 180, align: "L"},
			{title: "Count", width: 90, align: "C"},
			{title: "Percentage", width: 90, align: "C"},
		}, rows)
	}

	if len(doc.TopSongs) > 0 {
		section(pdf, tr, "Most logged songs")
		rows := make([][]string, len(doc.TopSongs))
		for i, s := range doc.TopSongs {
			rows[i] = []string{strconv.Itoa(s.Rank), s.Title, s.Artist, strconv.Itoa(s.Count)}
		}
		table(pdf, tr, []column{
			{title: "#", width: 36, align: "C"},
			{title: "Song", width: 160, align: "L"},
			{title: "Artist", width: 130, align: "L"},
			{title: "Times", width: 58, align: "C"},
		}, rows)
	}

	section(pdf, tr, "Observations")
	pdf.SetFont("Helvetica", "", 11)
	setText(pdf, colorPrimary)
	for _, obs := range doc.Observations {
		pdf.MultiCell(0, pdfLineHeight, tr("- "+obs), "", "L", false)
	}
	pdf.Ln(24)

	pdf.SetFont("Helvetica", "I", 9)
	setText(pdf, colorMuted)
	pdf.MultiCell(0, 14, tr(doc.Footer), "", "C", false)
	pdf.CellFormat(0, 14, tr(doc.Signature), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	setText(pdf, colorPrimary)
	pdf.CellFormat(0, 24, tr(title), "", 1, "L", false, 0, "")
}

func table(pdf *fpdf.Fpdf, tr func(string) string, cols []column, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 11)
	setFill(pdf, colorHeader)
	setText(pdf, colorWhite)
	for _, c := range cols {
		pdf.CellFormat(c.width, pdfLineHeight+4, tr(c.title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	setText(pdf, colorPrimary)
	setFill(pdf, colorStripe)
	for i, row := range rows {
		for j, c := range cols {
			text := tr(row[j])
			pdf.CellFormat(c.width, pdfLineHeight, fit(pdf, text, c.width-6), "1", 0, c.align, i%2 == 1, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(12)
}

// fit truncates s with an ellipsis so it renders within width points.
// s is already translated to the single-byte code page, so bytes are glyphs.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for n := len(s) - 1; n > 0; n-- {
		candidate := s[:n] + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}

func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
