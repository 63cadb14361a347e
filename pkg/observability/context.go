package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey  contextKey = "correlation_id"
	requestIDCtxKey      contextKey = "request_id"
	organizationIDCtxKey contextKey = "organization_id"
)

// Attribute keys used in log records.
const (
	CorrelationIDKey  = "correlation_id"
	RequestIDKey      = "request_id"
	OrganizationIDKey = "organization_id"
)

// WithCorrelationID stores id, generating one when empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithRequestID stores id, generating one when empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, requestIDCtxKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDCtxKey)
}

// WithOrganizationID tags ctx with the tenant being served.
func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, organizationIDCtxKey, orgID)
}

func OrganizationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, organizationIDCtxKey)
}

// NewRequestContext assigns a fresh request id and keeps the caller's correlation id if given.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), parentCorrelationID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
