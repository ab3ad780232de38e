package certificate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Page geometry for a landscape A4 certificate in millimeters.
const (
	pageWidth  = 297.0
	pageHeight = 210.0
)

// Data carries the textual fields rendered onto a certificate.
type Data struct {
	StudentName   string
	EventTitle    string
	EventDate     string
	OrganizerName string
	PrizeText     string
}

// Position places a text field on the template as fractions of the page.
type Position struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size float64 `json:"size"`
}

// Renderer produces certificate PDFs, either on top of an uploaded template
// image or with a programmatically drawn fallback layout.
type Renderer struct{}

// NewRenderer constructs a certificate renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderWithTemplate draws the certificate text over the template image.
// Positions override the default field placement; keys are student_name,
// event_title, event_date, organizer_name and prize_text.
func (r *Renderer) RenderWithTemplate(data Data, templatePath string, positions map[string]Position) ([]byte, error) {
	imageType, err := templateImageType(templatePath)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	pdf.ImageOptions(templatePath, 0, 0, pageWidth, pageHeight, false, opts, 0, "")
	if pdf.Err() {
		return nil, fmt.Errorf("place template image: %s", pdf.Error())
	}

	drawField(pdf, data.StudentName, fieldPosition(positions, "student_name", Position{X: 0.5, Y: 0.47, Size: 28}), "B")
	drawField(pdf, data.EventTitle, fieldPosition(positions, "event_title", Position{X: 0.5, Y: 0.58, Size: 18}), "")
	drawField(pdf, data.EventDate, fieldPosition(positions, "event_date", Position{X: 0.5, Y: 0.66, Size: 13}), "")
	drawField(pdf, data.OrganizerName, fieldPosition(positions, "organizer_name", Position{X: 0.5, Y: 0.85, Size: 12}), "")
	if data.PrizeText != "" {
		drawField(pdf, data.PrizeText, fieldPosition(positions, "prize_text", Position{X: 0.5, Y: 0.74, Size: 16}), "B")
	}

	return output(pdf)
}

// Render draws a plain certificate layout when no template image resolves.
func (r *Renderer) Render(data Data) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.Rect(8, 8, pageWidth-16, pageHeight-16, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(11, 11, pageWidth-22, pageHeight-22, "D")

	heading := "CERTIFICATE OF PARTICIPATION"
	if data.PrizeText != "" {
		heading = "CERTIFICATE OF ACHIEVEMENT"
	}

	pdf.SetFont("Times", "B", 30)
	pdf.SetXY(0, 35)
	pdf.CellFormat(pageWidth, 14, heading, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(0, 62)
	pdf.CellFormat(pageWidth, 8, "This certificate is proudly presented to", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 26)
	pdf.SetXY(0, 78)
	pdf.CellFormat(pageWidth, 12, data.StudentName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 14)
	pdf.SetXY(0, 98)
	pdf.CellFormat(pageWidth, 8, fmt.Sprintf("for participating in %s", data.EventTitle), "", 1, "C", false, 0, "")
	pdf.SetXY(0, 108)
	pdf.CellFormat(pageWidth, 8, fmt.Sprintf("held on %s", data.EventDate), "", 1, "C", false, 0, "")

	if data.PrizeText != "" {
		pdf.SetFont("Arial", "B", 18)
		pdf.SetXY(0, 124)
		pdf.CellFormat(pageWidth, 10, data.PrizeText, "", 1, "C", false, 0, "")
	}

	pdf.SetFont("Arial", "I", 12)
	pdf.SetXY(0, 170)
	pdf.CellFormat(pageWidth, 8, fmt.Sprintf("Organized by %s", data.OrganizerName), "", 1, "C", false, 0, "")

	return output(pdf)
}

// PrizeLine formats the prize annotation for a winning participant.
func PrizeLine(position, title string) string {
	if position == "" {
		return ""
	}
	if title != "" {
		return fmt.Sprintf("%s - %s", position, title)
	}
	return fmt.Sprintf("%s Place", position)
}

func drawField(pdf *gofpdf.Fpdf, text string, pos Position, style string) {
	if text == "" {
		return
	}
	size := pos.Size
	if size <= 0 {
		size = 14
	}
	pdf.SetFont("Arial", style, size)
	pdf.SetXY(0, pos.Y*pageHeight)
	pdf.CellFormat(pageWidth*pos.X*2, 10, text, "", 1, "C", false, 0, "")
}

func fieldPosition(positions map[string]Position, key string, fallback Position) Position {
	if positions == nil {
		return fallback
	}
	pos, ok := positions[key]
	if !ok {
		return fallback
	}
	if pos.X <= 0 || pos.X > 1 {
		pos.X = fallback.X
	}
	if pos.Y <= 0 || pos.Y > 1 {
		pos.Y = fallback.Y
	}
	if pos.Size <= 0 {
		pos.Size = fallback.Size
	}
	return pos
}

func templateImageType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "JPG", nil
	case ".png":
		return "PNG", nil
	default:
		return "", fmt.Errorf("unsupported template image type: %s", filepath.Ext(path))
	}
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
