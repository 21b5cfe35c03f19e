// Package policy decides what a principal may do to lead and opportunity
// records. It is pure: no I/O, no clock.
package policy

import (
	"fmt"

	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
)

type Operation string

const (
	OperationList   Operation = "list"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// CanAccess reports whether p may perform op. target is the record being
// changed; it is ignored for list and create and may be nil there.
//
//	role     list  create  update/delete own  update/delete other's
//	rep      own   yes     yes                no
//	manager  all   no      no                 no
//	admin    all   yes     yes                yes
func CanAccess(p models.Principal, op Operation, target models.Owned) bool {
	switch p.Role {
	case models.UserRoleRep:
		if p.ID == "" {
			return false
		}
		switch op {
		case OperationList, OperationCreate:
			return true
		case OperationUpdate, OperationDelete:
			return target != nil && target.GetAssignedTo() == p.ID
		}
	case models.UserRoleManager:
		return op == OperationList
	case models.UserRoleAdmin:
		switch op {
		case OperationList, OperationCreate, OperationUpdate, OperationDelete:
			return true
		}
	}
	return false
}

// Authorize is CanAccess as an error: nil or utils.ErrForbidden.
func Authorize(p models.Principal, op Operation, target models.Owned) error {
	if CanAccess(p, op, target) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot %s", utils.ErrForbidden, p.Role, op)
}

// Scope returns the filter a list by p must use.
func Scope(p models.Principal) (models.RecordFilter, error) {
	if err := Authorize(p, OperationList, nil); err != nil {
		return models.RecordFilter{}, err
	}
	switch p.Role {
	case models.UserRoleManager, models.UserRoleAdmin:
		return models.RecordFilter{}, nil
	default:
		return models.RecordFilter{AssignedTo: p.ID}, nil
	}
}
