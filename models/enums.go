package models

import (
	"encoding/json"
	"fmt"
)

type UserRole string

const (
	UserRoleRep     UserRole = "rep"
	UserRoleManager UserRole = "manager"
	UserRoleAdmin   UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleRep, UserRoleManager, UserRoleAdmin:
		return true
	}
	return false
}

func (r *UserRole) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, r, "role")
}

type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusUnqualified LeadStatus = "unqualified"
)

var AllLeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusUnqualified}

func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusUnqualified:
		return true
	}
	return false
}

func (s *LeadStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "lead status")
}

type OpportunityStage string

const (
	OpportunityStageDiscovery   OpportunityStage = "discovery"
	OpportunityStageProposal    OpportunityStage = "proposal"
	OpportunityStageNegotiation OpportunityStage = "negotiation"
	OpportunityStageWon         OpportunityStage = "won"
	OpportunityStageLost        OpportunityStage = "lost"
)

var AllOpportunityStages = []OpportunityStage{
	OpportunityStageDiscovery,
	OpportunityStageProposal,
	OpportunityStageNegotiation,
	OpportunityStageWon,
	OpportunityStageLost,
}

func (s OpportunityStage) IsValid() bool {
	switch s {
	case OpportunityStageDiscovery, OpportunityStageProposal, OpportunityStageNegotiation,
		OpportunityStageWon, OpportunityStageLost:
		return true
	}
	return false
}

// IsClosed reports whether the deal left the pipeline.
func (s OpportunityStage) IsClosed() bool {
	return s == OpportunityStageWon || s == OpportunityStageLost
}

// DefaultProbability is the probability an opportunity takes when it enters the
// stage without an explicit value. Probability stays independently editable.
func (s OpportunityStage) DefaultProbability() int {
	switch s {
	case OpportunityStageDiscovery:
		return 25
	case OpportunityStageProposal:
		return 50
	case OpportunityStageNegotiation:
		return 75
	case OpportunityStageWon:
		return 100
	case OpportunityStageLost:
		return 0
	}
	return 0
}

func (s *OpportunityStage) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "opportunity stage")
}

type enum interface {
	~string
	IsValid() bool
}

func unmarshalEnum[T enum](b []byte, dest *T, name string) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("%s must be a string", name)
	}
	v := T(str)
	if !v.IsValid() {
		return fmt.Errorf("invalid %s %q", name, str)
	}
	*dest = v
	return nil
}
