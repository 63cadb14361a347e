package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/occusafe/occusafe/internal/billing/domain"
)

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.UUID{}, errors.New("id is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}

func parseOptionalUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	return parseUUID(value)
}

// gateRequest builds a gate request from optional tool inputs. Both empty means an ungated check.
func gateRequest(feature, requiredTier string) (domain.GateRequest, error) {
	var req domain.GateRequest
	if f := strings.TrimSpace(feature); f != "" {
		parsed, err := domain.ParseFeatureKey(f)
		if err != nil {
			return req, err
		}
		req.Feature = &parsed
	}
	if t := strings.TrimSpace(requiredTier); t != "" {
		parsed, err := domain.ParseTier(t)
		if err != nil {
			return req, err
		}
		req.RequiredTier = &parsed
	}
	return req, nil
}
