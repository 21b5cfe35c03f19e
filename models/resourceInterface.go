package models

// Owned is implemented by every record that has a single owning user.
type Owned interface {
	GetID() string
	GetAssignedTo() string
}

func (l Lead) GetID() string {
	return l.ID
}

func (l Lead) GetAssignedTo() string {
	return l.AssignedTo
}

func (o Opportunity) GetID() string {
	return o.ID
}

func (o Opportunity) GetAssignedTo() string {
	return o.AssignedTo
}
