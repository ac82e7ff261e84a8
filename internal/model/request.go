package model

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Username string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type CreateUserRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email,max=160"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Cpf      string  `json:"cpf" validate:"omitempty,numeric,len=11"`
	GroupID  int64   `json:"group_id" validate:"required,gt=0"`
	Roles    []int64 `json:"roles" validate:"dive,gt=0"`
}

type UpdateUserRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Cpf      string  `json:"cpf" validate:"omitempty,numeric,len=11"`
	GroupID  int64   `json:"group_id" validate:"required,gt=0"`
	Roles    []int64 `json:"roles" validate:"dive,gt=0"`
}

type UpdateBalanceRequest struct {
	Balance *decimal.Decimal `json:"balance" validate:"required"`
}

type AuditActor struct {
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	IP       string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action   string
	ActorID  int64
	Status   string
	Resource string
	From     string
	To       string
	Page     int
	Limit    int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}

type UserList struct {
	Users []User `json:"users"`
}
