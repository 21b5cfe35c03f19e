package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	repA    = models.Principal{ID: "rep-a", Name: "Rep A", Role: models.UserRoleRep}
	repB    = models.Principal{ID: "rep-b", Name: "Rep B", Role: models.UserRoleRep}
	manager = models.Principal{ID: "manager-1", Name: "Manager", Role: models.UserRoleManager}
	admin   = models.Principal{ID: "admin-1", Name: "Admin", Role: models.UserRoleAdmin}
)

func newTestPipeline(store models.Store) *Pipeline {
	seq := 0
	return NewPipeline(store,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
}

func mustCreateLead(t *testing.T, p *Pipeline, principal models.Principal, name, company string) *models.Lead {
	t.Helper()
	lead, err := p.CreateLead(context.Background(), principal, models.NewLead{Name: name, Company: company, Email: "lead@example.com"})
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	return lead
}

func strPtr(s string) *string { return &s }

func TestPipeline_LeadOwnership(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())

	a1 := mustCreateLead(t, p, repA, "Alice", "Acme")
	mustCreateLead(t, p, repB, "Bob", "Beta")
	a2 := mustCreateLead(t, p, repA, "Carol", "Cargo")

	if a1.AssignedTo != "rep-a" || a1.Status != models.LeadStatusNew || !a1.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected created lead: %+v", a1)
	}

	own, err := p.ListLeads(ctx, repA)
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(own) != 2 || own[0].ID != a1.ID || own[1].ID != a2.ID {
		t.Fatalf("rep must see only own leads in order, got %d", len(own))
	}

	for _, principal := range []models.Principal{manager, admin} {
		all, err := p.ListLeads(ctx, principal)
		if err != nil || len(all) != 3 {
			t.Fatalf("%s must see all leads, got %d (%v)", principal.Role, len(all), err)
		}
	}

	if _, err := p.UpdateLead(ctx, repB, a1.ID, models.UpdateLead{Name: strPtr("Hijack")}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden updating another rep's lead, got %v", err)
	}
	if err := p.DeleteLead(ctx, repB, a1.ID); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting another rep's lead, got %v", err)
	}
	unchanged, _ := p.Store().Leads().Get(ctx, a1.ID)
	if unchanged.Name != "Alice" {
		t.Fatalf("forbidden update leaked: %+v", unchanged)
	}

	updated, err := p.UpdateLead(ctx, admin, a1.ID, models.UpdateLead{Name: strPtr("Alice Admin")})
	if err != nil || updated.Name != "Alice Admin" || updated.AssignedTo != "rep-a" {
		t.Fatalf("admin update = %+v, %v", updated, err)
	}
	if err := p.DeleteLead(ctx, repA, a2.ID); err != nil {
		t.Fatalf("DeleteLead own: %v", err)
	}
}

func TestPipeline_ManagerIsReadOnly(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())
	lead := mustCreateLead(t, p, repA, "Alice", "Acme")

	if _, err := p.CreateLead(ctx, manager, models.NewLead{Name: "x"}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager create, got %v", err)
	}
	if _, err := p.CreateOpportunity(ctx, manager, models.NewOpportunity{Name: "x", Company: "y"}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager create, got %v", err)
	}
	if _, err := p.UpdateLead(ctx, manager, lead.ID, models.UpdateLead{}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager update, got %v", err)
	}
	if err := p.DeleteLead(ctx, manager, lead.ID); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager delete, got %v", err)
	}
	if _, err := p.ConvertLead(ctx, manager, lead.ID, models.ConvertLead{}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for manager convert, got %v", err)
	}
	opps, _ := p.Store().Opportunities().List(ctx, models.RecordFilter{})
	if len(opps) != 0 {
		t.Fatalf("forbidden convert created %d opportunities", len(opps))
	}
}

func TestPipeline_NotFoundBeforeForbidden(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())

	if _, err := p.UpdateLead(ctx, manager, "missing", models.UpdateLead{}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := p.DeleteOpportunity(ctx, repA, "missing"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err := p.ConvertLead(ctx, repA, "missing", models.ConvertLead{})
	if !errors.Is(err, utils.ErrorRecordNotFound) || err.Error() != "lead not found" {
		t.Fatalf("expected \"lead not found\", got %v", err)
	}
}

func TestPipeline_ValidationRunsAfterAuthorization(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())

	if _, err := p.CreateLead(ctx, repA, models.NewLead{Name: " "}); !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	// a manager is refused before the body is looked at
	if _, err := p.CreateLead(ctx, manager, models.NewLead{Name: " "}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestPipeline_OpportunityLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())

	opp, err := p.CreateOpportunity(ctx, repA, models.NewOpportunity{
		Name:    "Renewal",
		Company: "Acme",
		Value:   utils.NewAmount(decimal.NewFromInt(1000)),
	})
	if err != nil {
		t.Fatalf("CreateOpportunity: %v", err)
	}
	if opp.Stage != models.OpportunityStageDiscovery || opp.Probability != 25 || opp.ExpectedCloseDate.String() != "2024-04-14" {
		t.Fatalf("unexpected defaults: %+v", opp)
	}

	stage := models.OpportunityStageProposal
	updated, err := p.UpdateOpportunity(ctx, repA, opp.ID, models.UpdateOpportunity{Stage: &stage})
	if err != nil {
		t.Fatalf("UpdateOpportunity: %v", err)
	}
	if updated.Probability != 50 {
		t.Fatalf("expected probability 50 after moving to proposal, got %d", updated.Probability)
	}

	probability := 150
	if _, err := p.UpdateOpportunity(ctx, repA, opp.ID, models.UpdateOpportunity{Probability: &probability}); !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	list, err := p.ListOpportunities(ctx, repB)
	if err != nil || len(list) != 0 {
		t.Fatalf("rep-b must not see rep-a's opportunity, got %d (%v)", len(list), err)
	}

	if err := p.DeleteOpportunity(ctx, repA, opp.ID); err != nil {
		t.Fatalf("DeleteOpportunity: %v", err)
	}
	if _, err := p.Store().Opportunities().Get(ctx, opp.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}
}

func TestPipeline_ConvertLeadDefaults(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())
	lead := mustCreateLead(t, p, repA, "Alice", "Acme")

	opp, err := p.ConvertLead(ctx, repA, lead.ID, models.ConvertLead{})
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if opp.Name != "Acme - Sales Opportunity" || opp.Company != "Acme" {
		t.Fatalf("unexpected name/company: %q/%q", opp.Name, opp.Company)
	}
	if opp.Stage != models.OpportunityStageDiscovery || opp.Probability != 25 || !opp.Value.IsZero() {
		t.Fatalf("unexpected deal fields: %+v", opp)
	}
	if opp.ExpectedCloseDate.String() != "2024-04-14" {
		t.Fatalf("expected close date today+30, got %s", opp.ExpectedCloseDate)
	}
	if opp.LeadID == nil || *opp.LeadID != lead.ID || opp.AssignedTo != "rep-a" {
		t.Fatalf("unexpected links: %+v", opp)
	}

	stored, _ := p.Store().Leads().Get(ctx, lead.ID)
	if stored.Status != models.LeadStatusQualified {
		t.Fatalf("expected lead qualified, got %s", stored.Status)
	}

	noCompany := mustCreateLead(t, p, repA, "Dave", "")
	opp, err = p.ConvertLead(ctx, repA, noCompany.ID, models.ConvertLead{})
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if opp.Name != "Dave - Sales Opportunity" {
		t.Fatalf("expected name from lead name, got %q", opp.Name)
	}
}

func TestPipeline_ConvertLeadIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())
	lead := mustCreateLead(t, p, repA, "Alice", "Acme")

	closeDate := models.NewDate(2024, time.June, 1)
	first, err := p.ConvertLead(ctx, repA, lead.ID, models.ConvertLead{
		OpportunityName:   strPtr("Acme expansion"),
		Value:             utils.NewAmount(decimal.NewFromInt(50000)),
		ExpectedCloseDate: &closeDate,
	})
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}
	if first.Name != "Acme expansion" || !first.Value.Equal(decimal.NewFromInt(50000)) || first.ExpectedCloseDate.String() != "2024-06-01" {
		t.Fatalf("input not applied: %+v", first)
	}

	second, err := p.ConvertLead(ctx, repA, lead.ID, models.ConvertLead{})
	if err != nil {
		t.Fatalf("second ConvertLead: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a second opportunity")
	}
	opps, _ := p.ListOpportunities(ctx, repA)
	if len(opps) != 2 {
		t.Fatalf("expected 2 opportunities, got %d", len(opps))
	}
}

func TestPipeline_ConvertOthersLeadForbidden(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())
	lead := mustCreateLead(t, p, repA, "Alice", "Acme")

	if _, err := p.ConvertLead(ctx, repB, lead.ID, models.ConvertLead{}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	stored, _ := p.Store().Leads().Get(ctx, lead.ID)
	if stored.Status != models.LeadStatusNew {
		t.Fatalf("forbidden convert changed lead status to %s", stored.Status)
	}
}

type failingOpportunityStore struct {
	models.Store
}

func (s failingOpportunityStore) Opportunities() models.Repository[models.Opportunity] {
	return failingOpportunityRepository{s.Store.Opportunities()}
}

func (s failingOpportunityStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return s.Store.Transaction(ctx, func(tx models.Store) error {
		return fn(failingOpportunityStore{tx})
	})
}

type failingOpportunityRepository struct {
	models.Repository[models.Opportunity]
}

func (failingOpportunityRepository) Create(context.Context, *models.Opportunity) error {
	return errors.New("disk full")
}

func TestPipeline_ConvertLeadRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := models.NewMemoryStore()
	lead := mustCreateLead(t, newTestPipeline(mem), repA, "Alice", "Acme")

	p := newTestPipeline(failingOpportunityStore{mem})
	if _, err := p.ConvertLead(ctx, repA, lead.ID, models.ConvertLead{}); err == nil || err.Error() != "disk full" {
		t.Fatalf("expected disk full, got %v", err)
	}
	stored, _ := mem.Leads().Get(ctx, lead.ID)
	if stored.Status != models.LeadStatusNew {
		t.Fatalf("lead status survived a failed conversion: %s", stored.Status)
	}
}

// A rep creates a lead, converts it, closes the deal, and the manager sees it.
func TestPipeline_SalesScenario(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(models.NewMemoryStore())

	lead := mustCreateLead(t, p, repA, "John Doe", "Acme")
	opp, err := p.ConvertLead(ctx, repA, lead.ID, models.ConvertLead{Value: utils.NewAmount(decimal.NewFromInt(50000))})
	if err != nil {
		t.Fatalf("ConvertLead: %v", err)
	}

	won := models.OpportunityStageWon
	closed, err := p.UpdateOpportunity(ctx, repA, opp.ID, models.UpdateOpportunity{Stage: &won})
	if err != nil {
		t.Fatalf("UpdateOpportunity: %v", err)
	}
	if closed.Probability != 100 {
		t.Fatalf("expected probability 100 once won, got %d", closed.Probability)
	}

	seen, err := p.ListOpportunities(ctx, manager)
	if err != nil || len(seen) != 1 || seen[0].Stage != models.OpportunityStageWon {
		t.Fatalf("manager view = %v, %v", seen, err)
	}
	if _, err := p.UpdateOpportunity(ctx, manager, opp.ID, models.UpdateOpportunity{}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("manager must not edit, got %v", err)
	}
}
