package entity

import "time"

// User is an actor resolved per request. CompanyID is nil only for
// platform-level administrators; for everyone else a missing tenant is a
// configuration error that fails closed.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CompanyID *int64    `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is an isolated tenant scope. All data except platform
// administrator accounts belongs to exactly one company.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
