package models

import (
	"strings"
	"time"

	"github.com/mmdatafocus/pipeline_backend/utils"
)

type Lead struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Email      string     `gorm:"size:255" json:"email"`
	Phone      string     `gorm:"size:50" json:"phone"`
	Company    string     `gorm:"size:255" json:"company"`
	Status     LeadStatus `gorm:"size:20;not null;index" json:"status"`
	AssignedTo string     `gorm:"size:36;not null;index" json:"assignedTo"`
	CreatedAt  time.Time  `gorm:"autoCreateTime:false;index" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

type NewLead struct {
	Name    string      `json:"name" binding:"required"`
	Email   string      `json:"email"`
	Phone   string      `json:"phone"`
	Company string      `json:"company"`
	Status  *LeadStatus `json:"status"`
}

// UpdateLead carries a partial edit: nil fields keep their stored value.
type UpdateLead struct {
	Name    *string     `json:"name"`
	Email   *string     `json:"email"`
	Phone   *string     `json:"phone"`
	Company *string     `json:"company"`
	Status  *LeadStatus `json:"status"`
}

func (input *NewLead) Validate(phoneRegion string) error {
	v := &utils.ValidationError{}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		v.Add("name", "required")
	}
	validateContact(v, input.Email, input.Phone, phoneRegion)
	if input.Status != nil && !input.Status.IsValid() {
		v.Add("status", "invalid")
	}
	return v.OrNil()
}

// NewLeadRecord builds the record a create stores; id and owner are server-assigned.
func (input *NewLead) NewLeadRecord(id, assignedTo string, now time.Time) *Lead {
	status := LeadStatusNew
	if input.Status != nil {
		status = *input.Status
	}
	return &Lead{
		ID:         id,
		Name:       input.Name,
		Email:      strings.TrimSpace(input.Email),
		Phone:      strings.TrimSpace(input.Phone),
		Company:    strings.TrimSpace(input.Company),
		Status:     status,
		AssignedTo: assignedTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (input *UpdateLead) Validate(phoneRegion string) error {
	v := &utils.ValidationError{}
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
		if trimmed == "" {
			v.Add("name", "required")
		}
	}
	validateContact(v, utils.DereferencePtr(input.Email), utils.DereferencePtr(input.Phone), phoneRegion)
	if input.Status != nil && !input.Status.IsValid() {
		v.Add("status", "invalid")
	}
	return v.OrNil()
}

// Apply merges the supplied fields into lead and stamps UpdatedAt.
func (input *UpdateLead) Apply(lead *Lead, now time.Time) {
	if input.Name != nil {
		lead.Name = *input.Name
	}
	if input.Email != nil {
		lead.Email = strings.TrimSpace(*input.Email)
	}
	if input.Phone != nil {
		lead.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Company != nil {
		lead.Company = strings.TrimSpace(*input.Company)
	}
	if input.Status != nil {
		lead.Status = *input.Status
	}
	lead.UpdatedAt = now
}

func validateContact(v *utils.ValidationError, email, phone, phoneRegion string) {
	if email = strings.TrimSpace(email); email != "" && !utils.IsValidEmail(email) {
		v.Add("email", "invalid")
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		if err := utils.ValidatePhoneNumber(phone, phoneRegion); err != nil {
			v.Add("phone", "invalid")
		}
	}
}
