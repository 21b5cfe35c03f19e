package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/policy"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pipeline_backend/workflow")

// Pipeline runs record operations on behalf of a principal. Every list is
// scoped and every mutation is authorized before the store is touched.
type Pipeline struct {
	store       models.Store
	cache       *config.Cache
	logger      *logrus.Logger
	now         func() time.Time
	newID       func() string
	phoneRegion string
}

type Option func(*Pipeline)

// WithCache enables the per-lead conversion lock. A nil cache is allowed.
func WithCache(cache *config.Cache) Option {
	return func(p *Pipeline) { p.cache = cache }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// WithPhoneRegion sets the default region used to parse lead phone numbers.
func WithPhoneRegion(region string) Option {
	return func(p *Pipeline) { p.phoneRegion = region }
}

func NewPipeline(store models.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		logger:      config.GetLogger(),
		now:         time.Now,
		newID:       uuid.NewString,
		phoneRegion: "US",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Store() models.Store {
	return p.store
}

func (p *Pipeline) ListLeads(ctx context.Context, principal models.Principal) ([]*models.Lead, error) {
	filter, err := policy.Scope(principal)
	if err != nil {
		return nil, err
	}
	return p.store.Leads().List(ctx, filter)
}

func (p *Pipeline) CreateLead(ctx context.Context, principal models.Principal, input models.NewLead) (*models.Lead, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateLead")
	defer span.End()

	if err := policy.Authorize(principal, policy.OperationCreate, nil); err != nil {
		return nil, endSpan(span, err)
	}
	if err := input.Validate(p.phoneRegion); err != nil {
		return nil, endSpan(span, err)
	}
	lead := input.NewLeadRecord(p.newID(), principal.ID, p.now())
	if err := p.store.Leads().Create(ctx, lead); err != nil {
		config.LogError(p.logger, "LeadWorkflow", "CreateLead", "create lead", lead, err)
		return nil, endSpan(span, err)
	}
	return lead, nil
}

func (p *Pipeline) UpdateLead(ctx context.Context, principal models.Principal, id string, input models.UpdateLead) (*models.Lead, error) {
	ctx, span := tracer.Start(ctx, "workflow.UpdateLead")
	defer span.End()

	lead, err := p.store.Leads().Get(ctx, id)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if err := policy.Authorize(principal, policy.OperationUpdate, lead); err != nil {
		return nil, endSpan(span, err)
	}
	if err := input.Validate(p.phoneRegion); err != nil {
		return nil, endSpan(span, err)
	}
	input.Apply(lead, p.now())
	if err := p.store.Leads().Save(ctx, lead); err != nil {
		return nil, endSpan(span, err)
	}
	return lead, nil
}

func (p *Pipeline) DeleteLead(ctx context.Context, principal models.Principal, id string) error {
	lead, err := p.store.Leads().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(principal, policy.OperationDelete, lead); err != nil {
		return err
	}
	return p.store.Leads().Delete(ctx, id)
}

func (p *Pipeline) ListOpportunities(ctx context.Context, principal models.Principal) ([]*models.Opportunity, error) {
	filter, err := policy.Scope(principal)
	if err != nil {
		return nil, err
	}
	return p.store.Opportunities().List(ctx, filter)
}

func (p *Pipeline) CreateOpportunity(ctx context.Context, principal models.Principal, input models.NewOpportunity) (*models.Opportunity, error) {
	ctx, span := tracer.Start(ctx, "workflow.CreateOpportunity")
	defer span.End()

	if err := policy.Authorize(principal, policy.OperationCreate, nil); err != nil {
		return nil, endSpan(span, err)
	}
	if err := input.Validate(); err != nil {
		return nil, endSpan(span, err)
	}
	opp := input.NewOpportunityRecord(p.newID(), principal.ID, p.now())
	if err := p.store.Opportunities().Create(ctx, opp); err != nil {
		config.LogError(p.logger, "OpportunityWorkflow", "CreateOpportunity", "create opportunity", opp, err)
		return nil, endSpan(span, err)
	}
	return opp, nil
}

func (p *Pipeline) UpdateOpportunity(ctx context.Context, principal models.Principal, id string, input models.UpdateOpportunity) (*models.Opportunity, error) {
	ctx, span := tracer.Start(ctx, "workflow.UpdateOpportunity")
	defer span.End()

	opp, err := p.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if err := policy.Authorize(principal, policy.OperationUpdate, opp); err != nil {
		return nil, endSpan(span, err)
	}
	if err := input.Validate(); err != nil {
		return nil, endSpan(span, err)
	}
	input.Apply(opp, p.now())
	if err := p.store.Opportunities().Save(ctx, opp); err != nil {
		return nil, endSpan(span, err)
	}
	return opp, nil
}

func (p *Pipeline) DeleteOpportunity(ctx context.Context, principal models.Principal, id string) error {
	opp, err := p.store.Opportunities().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(principal, policy.OperationDelete, opp); err != nil {
		return err
	}
	return p.store.Opportunities().Delete(ctx, id)
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
