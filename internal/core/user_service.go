package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type employeeService struct {
	pool *pgxpool.Pool
}

// NewEmployeeService constructs an EmployeeService backed by PostgreSQL.
func NewEmployeeService(pool *pgxpool.Pool) EmployeeService {
	return &employeeService{pool: pool}
}

const employeeSelect = `
	SELECT id, username, full_name, password_hash, role, is_active, created_at
	FROM employees`

func scanEmployee(row pgx.Row) (*Employee, error) {
	e := &Employee{}
	err := row.Scan(&e.ID, &e.Username, &e.FullName, &e.PasswordHash, &e.Role, &e.IsActive, &e.CreatedAt)
	return e, err
}

func (s *employeeService) GetByUsername(ctx context.Context, username string) (*Employee, error) {
	e, err := scanEmployee(s.pool.QueryRow(ctx,
		employeeSelect+" WHERE username = $1 AND is_active = true LIMIT 1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("employee", username)
		}
		return nil, fmt.Errorf("get employee %q: %w", username, err)
	}
	return e, nil
}

func (s *employeeService) GetByID(ctx context.Context, employeeID int) (*Employee, error) {
	e, err := scanEmployee(s.pool.QueryRow(ctx, employeeSelect+" WHERE id = $1", employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("employee", employeeID)
		}
		return nil, fmt.Errorf("get employee %d: %w", employeeID, err)
	}
	return e, nil
}

func (s *employeeService) Authenticate(ctx context.Context, username, password string) (*Employee, error) {
	e, err := s.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return e, nil
}

func (s *employeeService) Create(ctx context.Context, username, fullName, password string, role Role) (*Employee, error) {
	username = strings.TrimSpace(username)
	if username == "" || fullName == "" {
		return nil, fmt.Errorf("username and full name are required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	e, err := scanEmployee(s.pool.QueryRow(ctx, `
		INSERT INTO employees (username, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, full_name, password_hash, role, is_active, created_at`,
		username, fullName, string(hash), string(role),
	))
	if err != nil {
		return nil, fmt.Errorf("create employee %q: %w", username, err)
	}
	return e, nil
}
