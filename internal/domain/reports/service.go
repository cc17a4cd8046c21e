package reports

import (
	"bytes"
	"context"
	"time"

	"github.com/jung-kurt/gofpdf"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/domain/settings"
)

// EntitlementSource supplies the computed wallet rows the PDF renders,
// so the export always agrees with the live team report.
type EntitlementSource interface {
	TeamEntitlements(ctx context.Context, actor auth.UserContext, search string) ([]leave.EntitlementRow, error)
}

type BrandingSource interface {
	Branding(ctx context.Context) (settings.Branding, error)
}

type Service struct {
	Store        *Store
	Entitlements EntitlementSource
	Brand        BrandingSource
}

func NewService(store *Store, entitlements EntitlementSource, brand BrandingSource) *Service {
	return &Service{Store: store, Entitlements: entitlements, Brand: brand}
}

func (s *Service) LeaveUsage(ctx context.Context, year int) ([]UsageRow, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.LeaveUsage(ctx, year)
}

func (s *Service) OvertimeUsage(ctx context.Context, year int) ([]OvertimeUsageRow, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.OvertimeUsage(ctx, year)
}

func (s *Service) JobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	runs, err := s.Store.ListJobRuns(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountJobRuns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// BalanceSummaryPDF renders the current entitlement table for download.
// The actor scopes the rows exactly as the on-screen team report does.
func (s *Service) BalanceSummaryPDF(ctx context.Context, actor auth.UserContext) ([]byte, error) {
	rows, err := s.Entitlements.TeamEntitlements(ctx, actor, "")
	if err != nil {
		return nil, err
	}
	brand, err := s.Brand.Branding(ctx)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, brand.CompanyName+" Leave Balance Summary")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 8, "Generated "+time.Now().Format("2006-01-02 15:04"))
	pdf.Ln(12)

	headers := []string{"Employee", "Status", "Annual", "Medical", "Emergency", "Compassionate", "Unpaid Taken", "CF Days"}
	widths := []float64{60, 22, 32, 32, 32, 32, 26, 24}
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		cells := []string{
			r.Name,
			r.Status,
			r.AnnualRemaining.String() + " / " + r.AnnualEntitlement.String(),
			r.MedicalRemaining.String() + " / " + r.MedicalEntitlement.String(),
			r.EmergencyRemaining.String() + " / " + r.EmergencyEntitlement.String(),
			r.CompassionateRemaining.String() + " / " + r.CompassionateEntitlement.String(),
			r.UnpaidTaken.String(),
			r.CarryForwardTotal.String(),
		}
		for i, c := range cells {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 7, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
