package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role determines which ledger operations an account may perform.
// Roles are fixed at creation time.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Status is the lifecycle state of an account. Closed is terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusFrozen Status = "frozen"
	StatusClosed Status = "closed"
)

type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	Role          Role            `json:"role"`
	Balance       decimal.Decimal `json:"balance"`
	Status        Status          `json:"status"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}

// AccountView is the read model projection served from the Redis cache.
// It mirrors Account minus the password hash.
type AccountView struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          Role            `json:"role"`
	Balance       decimal.Decimal `json:"balance"`
	Status        Status          `json:"status"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
	UpdatedAt     time.Time       `json:"updatedTimestamp"`
}
