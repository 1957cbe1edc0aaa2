package auth

import (
	"errors"

	"agent-console/internal/phone"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims identify an agent signed in to one line.
// EmployeeID and AgentNumber are always present; Role only on access tokens.
type Claims struct {
	jwt.RegisteredClaims

	EmployeeID  string    `json:"employee_id"`
	AgentNumber string    `json:"agent_number"`
	Role        string    `json:"role"`
	TokenType   TokenType `json:"token_type"`
}

// Validate is run by the jwt parser after the registered claims pass.
func (c Claims) Validate() error {
	switch c.TokenType {
	case TokenTypeAccess:
		if c.Role == "" {
			return errors.New("role missing in access token")
		}
	case TokenTypeRefresh:
	default:
		return errors.New("unknown token_type")
	}
	if c.EmployeeID == "" {
		return errors.New("employee_id missing")
	}
	if c.AgentNumber == "" {
		return errors.New("agent_number missing")
	}
	return nil
}

// Line is the agent number as digits only.
func (c Claims) Line() string { return phone.Digits(c.AgentNumber) }
