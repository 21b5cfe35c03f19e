package models

// Principal is the authenticated identity behind a request. It is rebuilt from
// token claims on every request and never stored.
type Principal struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

func (u User) Principal() Principal {
	return Principal{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
