// Package export writes community member lists as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/icco/animeportal/models"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Üyeler"

// Headers are the exported columns. Contact, identity and birth details are
// never exported.
var Headers = []string{"ID", "Kullanıcı Adı", "Ad", "Soyad", "Fakülte", "Bölüm", "Sınıf", "Durum", "Kayıt Tarihi"}

// Status labels.
const (
	StatusApproved = "Onaylandı"
	StatusPending  = "Beklemede"
)

// Filename returns the download name for an export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("topluluk_uyeleri_%s.xlsx", t.Format("20060102_150405"))
}

// Row returns the exported cells for one member.
func Row(m models.CommunityMember) []any {
	status := StatusPending
	if m.IsApproved {
		status = StatusApproved
	}
	return []any{
		m.ID,
		m.Username,
		m.Name,
		m.Surname,
		m.Faculty,
		m.Department,
		m.StudentClass,
		status,
		m.RegistrationDate.Format("02.01.2006"),
	}
}

// Members writes the members as an xlsx workbook to w.
func Members(w io.Writer, members []models.CommunityMember) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, m := range members {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, Row(m)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
