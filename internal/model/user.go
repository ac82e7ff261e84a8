package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Cpf          string          `json:"cpf"`
	GroupID      int64           `json:"group_id"`
	Roles        []int64         `json:"roles"`
	Active       bool            `json:"active"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// UserGroup is the user row joined with its group, without credentials.
type UserGroup struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Cpf       string          `json:"cpf"`
	GroupID   int64           `json:"group_id"`
	GroupName string          `json:"group_name"`
	Roles     []int64         `json:"roles"`
	Active    bool            `json:"active"`
	Balance   decimal.Decimal `json:"balance"`
}

// TokenUser is the identity carried by a session token. PasswordHash is only
// set when the identity was resolved from storage.
type TokenUser struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"`
	GroupID      int64   `json:"group_id"`
	Roles        []int64 `json:"roles"`
}

type TokenPair struct {
	TokenType        string `json:"tokenType"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
}

// RemoteUser is the user shape returned by the upstream user API.
type RemoteUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Role struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID int64  `json:"group_id"`
}

type PageRequest struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Offset well inside int32 for any page size.
	MaxPage         = math.MaxInt32 / MaxPageSize
)

// Normalize clamps the page request to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

type Page[T any] struct {
	Items []T
	Meta  Meta
}

func NewMeta(page PageRequest, total int) Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}
	return Meta{Page: page.Page, Limit: page.Size, Total: total, TotalPages: totalPages}
}
