// Package export writes ranked basket results to spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kosarica/basket-service/internal/optimizer"
)

const (
	StoresSheet    = "Stores"
	BreakdownSheet = "Breakdown"

	// excelize built-in number format "0.00"
	numFmtTwoDecimals = 2
)

var (
	storesHeader    = []any{"Rank", "Store ID", "Store", "Chain", "City", "Total", "Available", "Missing", "Distance (km)"}
	breakdownHeader = []any{"Rank", "Store ID", "Store", "Product ID", "Price", "Qty", "Subtotal"}
)

// FormatAmount renders a money value with two decimals using the number
// conventions of tag.
func FormatAmount(tag language.Tag, amount decimal.Decimal) string {
	return message.NewPrinter(tag).Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// NewWorkbook builds a workbook with a Stores sheet (one row per candidate,
// in rank order) and a Breakdown sheet (one row per available basket line).
func NewWorkbook(result *optimizer.OptimizeResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", StoresSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(BreakdownSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	if err := writeStores(f, result.Candidates); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeBreakdown(f, result.Candidates); err != nil {
		f.Close()
		return nil, err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create style: %w", err)
	}
	for sheet, cols := range map[string][]string{
		StoresSheet:    {"F", "I"},
		BreakdownSheet: {"E", "G"},
	} {
		for _, col := range cols {
			if err := f.SetColStyle(sheet, col, money); err != nil {
				f.Close()
				return nil, fmt.Errorf("set %s!%s style: %w", sheet, col, err)
			}
		}
	}

	return f, nil
}

// WriteCandidates writes the workbook for result to w.
func WriteCandidates(w io.Writer, result *optimizer.OptimizeResult) error {
	f, err := NewWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeStores(f *excelize.File, candidates []*optimizer.StoreCandidate) error {
	if err := f.SetSheetRow(StoresSheet, "A1", &storesHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, cand := range candidates {
		var distance any = ""
		if cand.DistanceKm != nil {
			distance = *cand.DistanceKm
		}
		row := []any{
			i + 1,
			cand.StoreID,
			cand.StoreName,
			cand.ChainName,
			cand.City,
			cand.Total.InexactFloat64(),
			cand.AvailableCount,
			cand.MissingCount,
			distance,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(StoresSheet, cell, &row); err != nil {
			return fmt.Errorf("write store %d: %w", cand.StoreID, err)
		}
	}
	return nil
}

func writeBreakdown(f *excelize.File, candidates []*optimizer.StoreCandidate) error {
	if err := f.SetSheetRow(BreakdownSheet, "A1", &breakdownHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rowNum := 2
	for i, cand := range candidates {
		for _, line := range cand.Breakdown {
			row := []any{
				i + 1,
				cand.StoreID,
				cand.StoreName,
				line.ProductID,
				line.Price.InexactFloat64(),
				line.Qty,
				line.Subtotal.InexactFloat64(),
			}
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(BreakdownSheet, cell, &row); err != nil {
				return fmt.Errorf("write breakdown for store %d: %w", cand.StoreID, err)
			}
			rowNum++
		}
	}
	return nil
}
