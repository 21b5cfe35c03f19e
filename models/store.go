package models

import "context"

// RecordFilter narrows a List. A zero filter returns every record.
type RecordFilter struct {
	AssignedTo string
}

func (f RecordFilter) Matches(rec Owned) bool {
	return f.AssignedTo == "" || rec.GetAssignedTo() == f.AssignedTo
}

// Repository is a durable collection of one entity type. Get and Delete
// report a missing id with an error wrapping utils.ErrorRecordNotFound.
// List returns records in creation order.
type Repository[T any] interface {
	List(ctx context.Context, filter RecordFilter) ([]*T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, rec *T) error
	// Save overwrites the stored record with rec; last write wins.
	Save(ctx context.Context, rec *T) error
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Get(ctx context.Context, id string) (*User, error)
	// Create fails with utils.ErrConflict when the email is taken.
	Create(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id string, hashed string) error
}

type Store interface {
	Users() UserRepository
	Leads() Repository[Lead]
	Opportunities() Repository[Opportunity]
	// Transaction runs fn against a store whose writes commit together, or not
	// at all when fn returns an error. fn must only use the store it is given.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
