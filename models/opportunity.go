package models

import (
	"strings"
	"time"

	"github.com/mmdatafocus/pipeline_backend/utils"
	"github.com/shopspring/decimal"
)

// DefaultCloseWindowDays is how far out expectedCloseDate lands when not given.
const DefaultCloseWindowDays = 30

type Opportunity struct {
	ID                string           `gorm:"primaryKey;size:36" json:"id"`
	Name              string           `gorm:"size:255;not null" json:"name"`
	Company           string           `gorm:"size:255" json:"company"`
	Value             decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"value"`
	Stage             OpportunityStage `gorm:"size:20;not null;index" json:"stage"`
	Probability       int              `gorm:"not null;default:0" json:"probability"`
	ExpectedCloseDate Date             `json:"expectedCloseDate"`
	AssignedTo        string           `gorm:"size:36;not null;index" json:"assignedTo"`
	// LeadID points back at the converted lead. No foreign key: the lead may be
	// deleted and the reference left dangling.
	LeadID    *string   `gorm:"size:36;index" json:"leadId"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

type NewOpportunity struct {
	Name              string            `json:"name" binding:"required"`
	Company           string            `json:"company" binding:"required"`
	Value             *utils.Amount     `json:"value"`
	Stage             *OpportunityStage `json:"stage"`
	Probability       *int              `json:"probability"`
	ExpectedCloseDate *Date             `json:"expectedCloseDate"`
}

// UpdateOpportunity carries a partial edit: nil fields keep their stored value.
type UpdateOpportunity struct {
	Name              *string           `json:"name"`
	Company           *string           `json:"company"`
	Value             *utils.Amount     `json:"value"`
	Stage             *OpportunityStage `json:"stage"`
	Probability       *int              `json:"probability"`
	ExpectedCloseDate *Date             `json:"expectedCloseDate"`
}

// ConvertLead is the optional input of a lead conversion.
type ConvertLead struct {
	OpportunityName   *string       `json:"opportunityName"`
	Value             *utils.Amount `json:"value"`
	ExpectedCloseDate *Date         `json:"expectedCloseDate"`
}

func (input *NewOpportunity) Validate() error {
	v := &utils.ValidationError{}
	input.Name = strings.TrimSpace(input.Name)
	input.Company = strings.TrimSpace(input.Company)
	if input.Name == "" {
		v.Add("name", "required")
	}
	if input.Company == "" {
		v.Add("company", "required")
	}
	validateDeal(v, input.Value, input.Stage, input.Probability)
	return v.OrNil()
}

// NewOpportunityRecord applies create defaults: stage discovery, probability
// from the stage, value 0, close date DefaultCloseWindowDays out.
func (input *NewOpportunity) NewOpportunityRecord(id, assignedTo string, now time.Time) *Opportunity {
	stage := OpportunityStageDiscovery
	if input.Stage != nil {
		stage = *input.Stage
	}
	probability := stage.DefaultProbability()
	if input.Probability != nil {
		probability = *input.Probability
	}
	value := decimal.Zero
	if input.Value != nil {
		value = input.Value.Decimal
	}
	closeDate := DateOf(now.UTC()).AddDays(DefaultCloseWindowDays)
	if input.ExpectedCloseDate != nil && !input.ExpectedCloseDate.IsZero() {
		closeDate = *input.ExpectedCloseDate
	}
	return &Opportunity{
		ID:                id,
		Name:              input.Name,
		Company:           input.Company,
		Value:             value,
		Stage:             stage,
		Probability:       probability,
		ExpectedCloseDate: closeDate,
		AssignedTo:        assignedTo,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (input *UpdateOpportunity) Validate() error {
	v := &utils.ValidationError{}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
		if trimmed == "" {
			v.Add("name", "required")
		}
	}
	if input.Company != nil {
		trimmed := strings.TrimSpace(*input.Company)
		input.Company = &trimmed
		if trimmed == "" {
			v.Add("company", "required")
		}
	}
	validateDeal(v, input.Value, input.Stage, input.Probability)
	return v.OrNil()
}

// Apply merges the supplied fields into opp. A stage change without an explicit
// probability resets probability to the new stage's default; an explicit
// probability always wins. Nothing keeps the two in sync afterwards.
func (input *UpdateOpportunity) Apply(opp *Opportunity, now time.Time) {
	if input.Name != nil {
		opp.Name = *input.Name
	}
	if input.Company != nil {
		opp.Company = *input.Company
	}
	if input.Value != nil {
		opp.Value = input.Value.Decimal
	}
	if input.Stage != nil && *input.Stage != opp.Stage {
		opp.Stage = *input.Stage
		if input.Probability == nil {
			opp.Probability = opp.Stage.DefaultProbability()
		}
	}
	if input.Probability != nil {
		opp.Probability = *input.Probability
	}
	if input.ExpectedCloseDate != nil && !input.ExpectedCloseDate.IsZero() {
		opp.ExpectedCloseDate = *input.ExpectedCloseDate
	}
	opp.UpdatedAt = now
}

func (input *ConvertLead) Validate() error {
	v := &utils.ValidationError{}
	if input.OpportunityName != nil {
		trimmed := strings.TrimSpace(*input.OpportunityName)
		input.OpportunityName = &trimmed
	}
	validateDeal(v, input.Value, nil, nil)
	return v.OrNil()
}

func validateDeal(v *utils.ValidationError, value *utils.Amount, stage *OpportunityStage, probability *int) {
	if value != nil && value.Decimal.IsNegative() {
		v.Add("value", "must not be negative")
	}
	if stage != nil && !stage.IsValid() {
		v.Add("stage", "invalid")
	}
	if probability != nil && (*probability < 0 || *probability > 100) {
		v.Add("probability", "must be between 0 and 100")
	}
}
