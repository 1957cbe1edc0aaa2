package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxEmployeeID ctxKey = iota
	ctxAgentNumber
	ctxRole
)

func WithIdentity(ctx context.Context, employeeID, agentNumber, role string) context.Context {
	ctx = context.WithValue(ctx, ctxEmployeeID, employeeID)
	ctx = context.WithValue(ctx, ctxAgentNumber, agentNumber)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func EmployeeID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxEmployeeID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("employee_id not in context")
}

func AgentNumber(ctx context.Context) (string, error) {
	v := ctx.Value(ctxAgentNumber)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("agent_number not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
