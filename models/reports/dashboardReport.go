package reports

import (
	"context"
	"math"

	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/shopspring/decimal"
)

// RecordLister returns the records a principal is allowed to see.
type RecordLister interface {
	ListLeads(ctx context.Context, principal models.Principal) ([]*models.Lead, error)
	ListOpportunities(ctx context.Context, principal models.Principal) ([]*models.Opportunity, error)
}

type DashboardReport struct {
	UserName              string                          `json:"userName"`
	TotalLeads            int                             `json:"totalLeads"`
	TotalOpportunities    int                             `json:"totalOpportunities"`
	OpenOpportunities     int                             `json:"openOpportunities"`
	TotalOpportunityValue decimal.Decimal                 `json:"totalOpportunityValue"`
	TotalRevenue          decimal.Decimal                 `json:"totalRevenue"`
	WeightedPipelineValue decimal.Decimal                 `json:"weightedPipelineValue"`
	ConversionRate        int                             `json:"conversionRate"`
	WinRate               int                             `json:"winRate"`
	LeadsByStatus         map[models.LeadStatus]int       `json:"leadsByStatus"`
	OpportunitiesByStage  map[models.OpportunityStage]int `json:"opportunitiesByStage"`
}

// GetDashboardReport summarizes the principal's scoped records. It reads
// fresh data on every call and never writes.
func GetDashboardReport(ctx context.Context, lister RecordLister, principal models.Principal) (*DashboardReport, error) {
	leads, err := lister.ListLeads(ctx, principal)
	if err != nil {
		return nil, err
	}
	opportunities, err := lister.ListOpportunities(ctx, principal)
	if err != nil {
		return nil, err
	}
	return buildDashboardReport(principal, leads, opportunities), nil
}

func buildDashboardReport(principal models.Principal, leads []*models.Lead, opportunities []*models.Opportunity) *DashboardReport {
	report := &DashboardReport{
		UserName:              principal.Name,
		TotalLeads:            len(leads),
		TotalOpportunities:    len(opportunities),
		TotalOpportunityValue: decimal.Zero,
		TotalRevenue:          decimal.Zero,
		WeightedPipelineValue: decimal.Zero,
		LeadsByStatus:         make(map[models.LeadStatus]int, len(models.AllLeadStatuses)),
		OpportunitiesByStage:  make(map[models.OpportunityStage]int, len(models.AllOpportunityStages)),
	}
	for _, status := range models.AllLeadStatuses {
		report.LeadsByStatus[status] = 0
	}
	for _, stage := range models.AllOpportunityStages {
		report.OpportunitiesByStage[stage] = 0
	}

	for _, lead := range leads {
		report.LeadsByStatus[lead.Status]++
	}

	hundred := decimal.NewFromInt(100)
	for _, opp := range opportunities {
		report.OpportunitiesByStage[opp.Stage]++
		report.TotalOpportunityValue = report.TotalOpportunityValue.Add(opp.Value)
		switch {
		case opp.Stage == models.OpportunityStageWon:
			report.TotalRevenue = report.TotalRevenue.Add(opp.Value)
		case !opp.Stage.IsClosed():
			report.OpenOpportunities++
			weighted := opp.Value.Mul(decimal.NewFromInt(int64(opp.Probability))).Div(hundred)
			report.WeightedPipelineValue = report.WeightedPipelineValue.Add(weighted)
		}
	}
	report.WeightedPipelineValue = report.WeightedPipelineValue.Round(2)

	report.ConversionRate = percentage(report.TotalOpportunities, report.TotalLeads)
	won := report.OpportunitiesByStage[models.OpportunityStageWon]
	lost := report.OpportunitiesByStage[models.OpportunityStageLost]
	report.WinRate = percentage(won, won+lost)
	return report
}

// percentage is round(part/whole*100), and 0 when whole is 0.
func percentage(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
