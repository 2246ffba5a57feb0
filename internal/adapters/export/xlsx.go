// Package export renders boards as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of WriteBoardXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const maxSheetName = 31

var header = []any{"Rank", "Team", "Score"}

// SheetName turns a board codename into a valid worksheet name.
func SheetName(codename string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, codename)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "board"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// WriteBoardXLSX writes board as a one-sheet workbook named after codename.
func WriteBoardXLSX(w io.Writer, codename string, board model.Board) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	sheet := SheetName(codename)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", bold); err != nil {
		return fmt.Errorf("export: style: %w", err)
	}

	for i, e := range board {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
		row := []any{e.Rank, e.Team.Name, e.Score}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 36); err != nil {
		return fmt.Errorf("export: width: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("export: panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
