// Package report generates downloadable expense reports.
package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expensio/expense-approval/internal/models"
)

// ExpenseLister supplies the expenses included in a report
type ExpenseLister interface {
	ListByCompany(ctx context.Context, companyID int64) ([]*models.Expense, error)
}

// Exporter renders a company's expenses as an Excel workbook
type Exporter struct {
	expenses ExpenseLister
	logger   *zap.Logger
}

// NewExporter creates a new report exporter
func NewExporter(expenses ExpenseLister, logger *zap.Logger) *Exporter {
	return &Exporter{
		expenses: expenses,
		logger:   logger,
	}
}

var reportHeaders = []string{
	"ID", "Submitter ID", "Amount", "Currency", "Amount (Company Currency)",
	"Category", "Description", "Date", "Status",
}

// ExportCompanyExpenses builds an xlsx workbook listing every expense owned
// by the company, one row per expense, and returns the serialized bytes.
func (e *Exporter) ExportCompanyExpenses(ctx context.Context, company *models.Company) (*bytes.Buffer, error) {
	expenses, err := e.expenses.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("list company expenses: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, "Expenses"); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sheet = "Expenses"

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}

	for row, expense := range expenses {
		date := ""
		if expense.Date != nil {
			date = expense.Date.Format("2006-01-02")
		}
		values := []interface{}{
			expense.ID,
			expense.SubmitterID,
			expense.Amount,
			expense.Currency,
			expense.AmountCompanyCurrency,
			expense.Category,
			expense.Description,
			date,
			expense.Status.String(),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	e.logger.Info("Exported company expense report",
		zap.Int64("company_id", company.ID),
		zap.Int("expense_count", len(expenses)))
	return buf, nil
}
