// Package report renders and archives the printable ticket history.
package report

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"parking_network/internal/domain"
)

// PDFRenderer draws one row per booking and a QR code listing the booking
// ids, so a printed history can be checked against the ledger.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func qrPayload(h domain.TicketHistory) string {
	var b bytes.Buffer
	b.WriteString("parking-history|" + h.Username)
	for _, e := range h.Entries {
		b.WriteString("|" + e.ID)
	}
	return b.String()
}

func statusLine(e domain.TicketEntry) string {
	lifecycle := string(e.Status)
	switch {
	case e.CheckedOut:
		lifecycle += ", checked out"
	case e.CheckedIn:
		lifecycle += ", checked in"
	}
	return lifecycle + " / " + string(e.Payment)
}

func (r *PDFRenderer) Render(h domain.TicketHistory) ([]byte, error) {
	qrPNG, err := qrcode.Encode(qrPayload(h), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket history for "+h.Username, true)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Parking ticket history")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	name := h.Username
	if h.User != nil && h.User.Name != "" {
		name = fmt.Sprintf("%s (%s)", h.User.Name, h.Username)
	}
	pdf.Cell(0, 8, "Customer: "+name)
	pdf.Ln(6)
	if h.User != nil && h.User.License != "" {
		pdf.Cell(0, 8, "Licence: "+h.User.License)
		pdf.Ln(6)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Tickets: %d", h.Count))
	pdf.Ln(6)
	pdf.Cell(0, 8, "Generated: "+h.GeneratedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 12, 35, 35, false, imageOpts, 0, "")

	widths := []float64{34, 46, 12, 40, 22, 36}
	headers := []string{"City", "Station", "Slot", "From / To", "Total", "Status"}
	pdf.SetFont("Arial", "B", 9)
	for i, hdr := range headers {
		pdf.CellFormat(widths[i], 7, hdr, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, e := range h.Entries {
		total := fmt.Sprintf("%.2f", e.TotalPrice)
		if e.CurrentSlotPrice.Valid {
			total += fmt.Sprintf(" (%.0f/h)", e.CurrentSlotPrice.Float64)
		}
		cells := []string{
			e.City,
			e.ParkingStation,
			fmt.Sprint(e.Slot),
			fmt.Sprintf("%s %s - %s %s", e.CheckInDate, e.CheckInTime, e.CheckOutDate, e.CheckOutTime),
			total,
			statusLine(e),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(h.Entries) == 0 {
		pdf.Cell(0, 8, "No bookings yet.")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
