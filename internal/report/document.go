package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"dailyexpense/internal/core"
)

const (
	// Title heads every exported report.
	Title = "Expense Report (Last 7 Days)"

	// MIMEText is the content type of the textual export.
	MIMEText = "text/plain"

	// PDFExportMessage is the status reported by the simulated PDF export.
	PDFExportMessage = "PDF export simulated"
)

// Document is a rendered report ready to be handed to an Exporter.
type Document struct {
	Title    string
	Body     string
	MIMEType string
}

// Exporter delivers a Document somewhere: a queue, a file, a terminal.
type Exporter interface {
	Export(ctx context.Context, doc Document) error
}

// WriterExporter writes the document body to W.
type WriterExporter struct {
	W io.Writer
}

func (e WriterExporter) Export(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.WriteString(e.W, doc.Body); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// TextDocument renders the daily totals, in the order given, as the plain
// text share format:
//
//	Expense Report (Last 7 Days)
//
//	Wed, May 1: ₹250.00
func TextDocument(daily []core.DailyTotal) Document {
	var b strings.Builder
	b.WriteString(Title)
	b.WriteString("\n\n")
	for _, d := range daily {
		fmt.Fprintf(&b, "%s: %s\n", d.Day.Label(), d.Total.Rupees())
	}
	return Document{Title: Title, Body: b.String(), MIMEType: MIMEText}
}

// SimulatePDFExport produces no file; it only returns the status message to
// show the user.
func SimulatePDFExport() string {
	return PDFExportMessage
}

// Bar is one row of the spending overview chart.
type Bar struct {
	Label string
	Total core.Money
	// Share is Total relative to the largest day in the window, in [0, 1].
	Share float64
}

// Bars scales each daily total against the window maximum.
func Bars(daily []core.DailyTotal) []Bar {
	var max int64
	for _, d := range daily {
		if d.Total.Cents > max {
			max = d.Total.Cents
		}
	}

	bars := make([]Bar, 0, len(daily))
	for _, d := range daily {
		bar := Bar{Label: d.Day.Label(), Total: d.Total}
		if max > 0 {
			bar.Share = float64(d.Total.Cents) / float64(max)
		}
		bars = append(bars, bar)
	}
	return bars
}
