package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/pipeline_backend/config"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/policy"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	convertLockTTL        = 30 * time.Second
	opportunityNameSuffix = " - Sales Opportunity"
)

// ConvertLead qualifies a lead and opens a discovery-stage opportunity for it.
// Both writes commit together. Calling it twice opens two opportunities.
func (p *Pipeline) ConvertLead(ctx context.Context, principal models.Principal, leadID string, input models.ConvertLead) (*models.Opportunity, error) {
	ctx, span := tracer.Start(ctx, "workflow.ConvertLead", trace.WithAttributes(
		attribute.String("lead.id", leadID),
		attribute.String("principal.role", string(principal.Role)),
	))
	defer span.End()

	release := p.lockLead(ctx, leadID)
	defer release()

	var result *models.Opportunity
	err := p.store.Transaction(ctx, func(tx models.Store) error {
		lead, err := tx.Leads().Get(ctx, leadID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(principal, policy.OperationUpdate, lead); err != nil {
			return err
		}
		if err := input.Validate(); err != nil {
			return err
		}

		now := p.now()
		lead.Status = models.LeadStatusQualified
		lead.UpdatedAt = now
		if err := tx.Leads().Save(ctx, lead); err != nil {
			return err
		}

		opp := opportunityFromLead(lead, input, p.newID(), principal.ID, now)
		if err := tx.Opportunities().Create(ctx, opp); err != nil {
			return err
		}
		result = opp
		return nil
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	span.SetAttributes(attribute.String("opportunity.id", result.ID))
	p.logger.WithFields(logrus.Fields{
		"field":          "ConvertLead",
		"lead_id":        leadID,
		"opportunity_id": result.ID,
		"user_id":        principal.ID,
	}).Info("lead converted")
	return result, nil
}

func opportunityFromLead(lead *models.Lead, input models.ConvertLead, id, assignedTo string, now time.Time) *models.Opportunity {
	name := defaultOpportunityName(lead)
	if input.OpportunityName != nil && strings.TrimSpace(*input.OpportunityName) != "" {
		name = strings.TrimSpace(*input.OpportunityName)
	}
	value := decimal.Zero
	if input.Value != nil {
		value = input.Value.Decimal
	}
	closeDate := models.DateOf(now.UTC()).AddDays(models.DefaultCloseWindowDays)
	if input.ExpectedCloseDate != nil && !input.ExpectedCloseDate.IsZero() {
		closeDate = *input.ExpectedCloseDate
	}
	leadID := lead.ID
	return &models.Opportunity{
		ID:                id,
		Name:              name,
		Company:           lead.Company,
		Value:             value,
		Stage:             models.OpportunityStageDiscovery,
		Probability:       models.OpportunityStageDiscovery.DefaultProbability(),
		ExpectedCloseDate: closeDate,
		AssignedTo:        assignedTo,
		LeadID:            &leadID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func defaultOpportunityName(lead *models.Lead) string {
	base := strings.TrimSpace(lead.Company)
	if base == "" {
		base = lead.Name
	}
	return base + opportunityNameSuffix
}

// lockLead takes a best-effort redis lock on the lead. Without redis, or when
// the lock is held elsewhere, it proceeds unlocked; the store transaction
// still keeps the two writes atomic.
func (p *Pipeline) lockLead(ctx context.Context, leadID string) func() {
	locker := p.cache.Locker()
	if locker == nil {
		return func() {}
	}
	lockKey := fmt.Sprintf("lock:convert:%s", leadID)
	lock, err := locker.Obtain(ctx, lockKey, convertLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		p.logger.WithFields(logrus.Fields{"field": "ConvertLead", "lead_id": leadID}).
			Warn("could not obtain redis lock; proceeding without redis lock")
		return func() {}
	} else if err != nil {
		config.LogError(p.logger, "ConversionWorkflow", "lockLead", "obtain redis lock", leadID, err)
		return func() {}
	}
	return func() {
		// ctx may already be cancelled by the time the request finishes
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			p.logger.WithFields(logrus.Fields{"field": "ConvertLead", "lead_id": leadID}).
				Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}
}
