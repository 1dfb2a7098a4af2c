package core

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user, an inactive
// user or a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Employee is a person who logs production or manages it.
type Employee struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity passed into application operations.
func (e Employee) Actor() Actor {
	id := e.ID
	return Actor{EmployeeID: &id, Name: e.FullName, Role: e.Role}
}

// EmployeeService provides employee lookup and password authentication.
type EmployeeService interface {
	// GetByUsername finds an active employee by username.
	GetByUsername(ctx context.Context, username string) (*Employee, error)

	// GetByID returns an employee by primary key.
	GetByID(ctx context.Context, employeeID int) (*Employee, error)

	// Authenticate verifies a password against the stored bcrypt hash.
	Authenticate(ctx context.Context, username, password string) (*Employee, error)

	// Create adds an employee, hashing the password with bcrypt.
	Create(ctx context.Context, username, fullName, password string, role Role) (*Employee, error)
}
