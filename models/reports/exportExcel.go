package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	excelSheetName   = "Sheet1"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type leadRow struct{ *models.Lead }

func (r leadRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Name, r.Email, r.Phone, r.Company, string(r.Status),
		r.AssignedTo, r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type opportunityRow struct{ *models.Opportunity }

func (r opportunityRow) GetCellValues() []interface{} {
	return []interface{}{
		r.Name, r.Company, r.Value.InexactFloat64(), string(r.Stage), r.Probability,
		r.ExpectedCloseDate.String(), r.AssignedTo, utils.DereferencePtr(r.LeadID),
		r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

var (
	leadHeadings        = []string{"Name", "Email", "Phone", "Company", "Status", "AssignedTo", "CreatedAt"}
	opportunityHeadings = []string{"Name", "Company", "Value", "Stage", "Probability", "ExpectedCloseDate", "AssignedTo", "LeadId", "CreatedAt"}
)

// ExportLeads writes the principal's scoped leads into a workbook.
func ExportLeads(ctx context.Context, lister RecordLister, principal models.Principal) (*excelize.File, error) {
	leads, err := lister.ListLeads(ctx, principal)
	if err != nil {
		return nil, err
	}
	rows := make([]ExcelExporter, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, leadRow{lead})
	}
	return exportExcel(rows, leadHeadings...)
}

func ExportOpportunities(ctx context.Context, lister RecordLister, principal models.Principal) (*excelize.File, error) {
	opportunities, err := lister.ListOpportunities(ctx, principal)
	if err != nil {
		return nil, err
	}
	rows := make([]ExcelExporter, 0, len(opportunities))
	for _, opp := range opportunities {
		rows = append(rows, opportunityRow{opp})
	}
	return exportExcel(rows, opportunityHeadings...)
}

func exportExcel(data []ExcelExporter, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()

	for i, h := range headings {
		if err := setCell(f, i+1, 1, h); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i, d := range data {
		for j, value := range d.GetCellValues() {
			if err := setCell(f, j+1, i+2, value); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	return f, nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(excelSheetName, cell, value)
}
