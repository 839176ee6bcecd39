// Package journal keeps an Excel workbook with one row per trade event.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Trades"

var headers = []string{
	"Time", "Event", "Asset", "Direction", "Entry", "Stop Loss", "Take Profit", "Quantity", "Reason",
}

// Entry is one journal row
type Entry struct {
	Time       time.Time
	Event      string
	Asset      string
	Direction  string
	Entry      float64
	StopLoss   float64
	TakeProfit *float64
	Quantity   float64
	Reason     string
}

// Journal appends entries to an .xlsx file. The workbook is reopened for
// every write so the file stays readable while the bot runs.
type Journal struct {
	mu   sync.Mutex
	path string
}

// New creates a journal writing to path
func New(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the workbook location
func (j *Journal) Path() string {
	return j.path
}

// Record appends one entry
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	fx, err := j.open()
	if err != nil {
		return err
	}
	defer fx.Close()

	rows, err := fx.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("failed to read journal rows: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	var tp interface{} = ""
	if e.TakeProfit != nil {
		tp = *e.TakeProfit
	}
	row := []interface{}{
		e.Time.Format("2006-01-02 15:04:05"), e.Event, e.Asset, e.Direction,
		e.Entry, e.StopLoss, tp, e.Quantity, e.Reason,
	}
	if err := fx.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write journal row: %w", err)
	}

	return fx.SaveAs(j.path)
}

// Rows returns the data rows without the header, mostly for tests
func (j *Journal) Rows() ([][]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fx, err := excelize.OpenFile(j.path)
	if err != nil {
		return nil, err
	}
	defer fx.Close()

	rows, err := fx.GetRows(sheetName)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (j *Journal) open() (*excelize.File, error) {
	fx, err := excelize.OpenFile(j.path)
	if err == nil {
		return fx, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open journal %s: %w", j.path, err)
	}

	if dir := filepath.Dir(j.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx = excelize.NewFile()
	if err := fx.SetSheetName(fx.GetSheetName(0), sheetName); err != nil {
		fx.Close()
		return nil, err
	}

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		fx.Close()
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheetName, cell, h)
		fx.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	fx.SetColWidth(sheetName, "A", "A", 20)
	fx.SetColWidth(sheetName, "I", "I", 40)
	return fx, nil
}
