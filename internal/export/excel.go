// Package export renders booking lists as Excel workbooks for the
// staff export endpoint.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"reserva/internal/models"
)

var bookingColumns = []string{
	"Code", "Date", "Heure", "Couverts", "Nom", "Email", "Téléphone", "Commentaire", "Statut", "Créée le",
}

// WriteBookingsXLSX writes one "Réservations" sheet with a bold header
// row followed by one row per booking.
func WriteBookingsXLSX(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Réservations"
	f.SetSheetName("Sheet1", sheet)

	if err := writeRow(f, sheet, 1, headerCells()); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(bookingColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", end, style)
	}

	for i, b := range bookings {
		row := []any{
			b.BookingCode, b.DateISO, b.Time24h, b.PartySize,
			b.Name, b.Email, b.Phone, b.Comments, b.Status, b.CreatedAt,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func headerCells() []any {
	cells := make([]any, len(bookingColumns))
	for i, c := range bookingColumns {
		cells[i] = c
	}
	return cells
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
