// Package report renders a stored scan as a one-document PDF.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"phishguard/scoring"
	"phishguard/store"
)

const fontFamily = "Helvetica"

// Render writes the PDF for r to w.
func Render(w io.Writer, r *store.Record) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("PhishGuard Scan Report", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "PhishGuard - Scan Report", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+time.Now().UTC().Format("2006-01-02 15:04:05 UTC"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	v := r.Verdict
	sectionTitle(pdf, "1. Verdict")
	kv(pdf, tr, "Scan ID", r.ID)
	kv(pdf, tr, "Kind", string(r.Kind))
	kv(pdf, tr, "Input", r.Input)
	kv(pdf, tr, "Scanned At", r.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	kv(pdf, tr, "Duration", fmt.Sprintf("%d ms", r.ScanDurationMs))

	red, green, blue := labelColor(v.Label)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, "Result:", "", 0, "L", false, 0, "")
	pdf.SetTextColor(red, green, blue)
	pdf.CellFormat(0, 5.2, fmt.Sprintf("%s (%d/100)", v.Label, v.Score), "", 1, "L", false, 0, "")
	kv(pdf, tr, "Action", v.Action)
	if v.Degraded {
		kv(pdf, tr, "Note", "Some checks were unavailable; the result is a conservative estimate.")
	}
	if len(v.ThreatTypes) > 0 {
		kv(pdf, tr, "Threat Types", strings.Join(v.ThreatTypes, ", "))
	}
	pdf.Ln(2)

	sectionTitle(pdf, "2. Risk Factors")
	bullets(pdf, tr, v.Factors)
	pdf.Ln(2)

	if len(v.Breakdown) > 0 {
		sectionTitle(pdf, "3. Score Breakdown")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(30, 30, 30)
		for _, c := range v.Breakdown {
			pdf.MultiCell(0, 4.5, fmt.Sprintf("%s: score %.2f x weight %.2f = %.1f points",
				c.Source, c.Score, c.Weight, c.Points), "", "L", false)
		}
		pdf.Ln(2)
	}

	if exp := r.Explanation; exp != nil {
		sectionTitle(pdf, "4. Explanation")
		pdf.SetFont(fontFamily, "", 10)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, 5, tr(safeText(exp.Text)), "", "L", false)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(90, 90, 90)
		by := exp.GeneratedBy
		if exp.Model != "" {
			by += " / " + exp.Model
		}
		pdf.MultiCell(0, 4, "Generated by: "+tr(by), "", "L", false)
		pdf.Ln(2)

		if len(exp.SafetyTips) > 0 {
			sectionTitle(pdf, "5. Safety Tips")
			bullets(pdf, tr, exp.SafetyTips)
		}
	}

	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, "This report reflects automated checks at scan time. Sites change; rescan before trusting a link.", "", "L", false)

	return pdf.Output(w)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, tr func(string) string, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, tr(safeText(value)), "", "L", false)
}

func bullets(pdf *gofpdf.Fpdf, tr func(string) string, items []string) {
	pdf.SetFont(fontFamily, "", 10)
	if len(items) == 0 {
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(none)", "", "L", false)
		return
	}
	pdf.SetTextColor(30, 30, 30)
	for _, it := range items {
		pdf.MultiCell(0, 5, "- "+tr(safeText(it)), "", "L", false)
	}
}

func labelColor(label string) (int, int, int) {
	switch label {
	case scoring.LabelPhishing, scoring.LabelHigh:
		return 190, 30, 30
	case scoring.LabelSuspicious, scoring.LabelMedium, scoring.LabelLowMedium:
		return 200, 120, 0
	default:
		return 30, 140, 60
	}
}

// safeText flattens whitespace so one value stays one paragraph.
func safeText(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}
