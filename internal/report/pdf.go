// Package report renders a finished diagnosis as a printable PDF.
package report

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/imaging"
)

const (
	title      = "DERMASCAN AI DIAGNOSIS REPORT"
	disclaimer = "This report is generated by DermaScan AI and should be reviewed by a healthcare professional."
	copyright  = "Confidential Patient Report - (c) 2025 DermaScan AI"

	pageMargin = 15.0
	imageWidth = 80.0
)

// Data is everything printed on a report.
type Data struct {
	PatientName     string
	Date            time.Time
	Primary         domain.ScoredCondition
	Others          []domain.ScoredCondition
	Recommendations []string
	Symptoms        []domain.Symptom

	// Original is the uploaded photo, Overlay the attention image.
	// Either may be nil.
	Original image.Image
	Overlay  image.Image
}

// FileName returns DermaScan_<Patient_Name>_<YYYY-MM-DD>.pdf.
func FileName(patientName string, date time.Time) string {
	name := strings.Join(strings.Fields(patientName), "_")
	if name == "" {
		name = "Patient"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf("DermaScan_%s_%s.pdf", name, date.Format("2006-01-02"))
}

// Render writes the report PDF to w.
func Render(w io.Writer, data *Data) error {
	if data == nil {
		return fmt.Errorf("report data is required")
	}
	if !data.Primary.Condition.IsValid() {
		return domain.NewValidationError("primary", "primary diagnosis is required", data.Primary.Condition)
	}
	date := data.Date
	if date.IsZero() {
		date = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetTitle(title, false)
	pdf.SetAuthor("DermaScan AI", false)
	pdf.SetCreationDate(date)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, disclaimer, "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, copyright, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 60, 120)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	patient := data.PatientName
	if patient == "" {
		patient = "N/A"
	}
	pdf.CellFormat(0, 7, tr("Patient: "+patient), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Report date: "+date.Format("2006-01-02"), "", 1, "L", false, 0, "")
	if len(data.Symptoms) > 0 {
		names := make([]string, len(data.Symptoms))
		for i, s := range data.Symptoms {
			names[i] = strings.ReplaceAll(s.String(), "_", " ")
		}
		pdf.CellFormat(0, 7, "Reported symptoms: "+strings.Join(names, ", "), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, "Primary diagnosis")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s (%s)", data.Primary.Condition.DisplayName(), data.Primary.Percent), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(data.Others) > 0 {
		section(pdf, "Other possible conditions")
		pdf.SetFont("Helvetica", "", 11)
		for _, o := range data.Others {
			pdf.CellFormat(0, 6, fmt.Sprintf("- %s: %s", o.Condition.DisplayName(), o.Percent), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}

	if len(data.Recommendations) > 0 {
		section(pdf, "Recommendations")
		pdf.SetFont("Helvetica", "", 11)
		for _, r := range data.Recommendations {
			pdf.MultiCell(0, 6, tr("- "+r), "", "L", false)
		}
		pdf.Ln(2)
	}

	if err := drawImages(pdf, data.Original, data.Overlay); err != nil {
		return err
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

// Bytes renders the report into memory.
func Bytes(data *Data) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, heading string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 60, 120)
	pdf.CellFormat(0, 8, heading, "B", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(1)
}

func drawImages(pdf *gofpdf.Fpdf, original, overlay image.Image) error {
	if original == nil && overlay == nil {
		return nil
	}
	section(pdf, "Images")
	top := pdf.GetY() + 2
	x := pageMargin

	for i, img := range []image.Image{original, overlay} {
		if img == nil {
			continue
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			continue
		}
		payload, err := imaging.EncodePNG(img)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("img%d", i)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(payload))
		pdf.ImageOptions(name, x, top, imageWidth, 0, false, opts, 0, "")

		caption := "Original image"
		if i == 1 {
			caption = "AI attention map"
		}
		h := imageWidth * float64(b.Dy()) / float64(b.Dx())
		pdf.SetXY(x, top+h+1)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(imageWidth, 5, caption, "", 0, "C", false, 0, "")
		x += imageWidth + 10
	}
	return pdf.Error()
}
