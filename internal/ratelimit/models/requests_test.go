package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "aegis/pkg/domain-errors"
)

func TestEvaluateRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      *EvaluateRequest
		wantCode dErrors.Code
	}{
		{
			name: "valid request",
			req:  &EvaluateRequest{Identity: "u1", Tier: "standard"},
		},
		{
			name:     "missing identity",
			req:      &EvaluateRequest{Tier: "standard"},
			wantCode: dErrors.CodeInvalidInput,
		},
		{
			name:     "missing tier",
			req:      &EvaluateRequest{Identity: "u1"},
			wantCode: dErrors.CodeInvalidInput,
		},
		{
			name:     "oversized identity",
			req:      &EvaluateRequest{Identity: strings.Repeat("x", 256), Tier: "standard"},
			wantCode: dErrors.CodeInvalidInput,
		},
		{
			name:     "nil request",
			wantCode: dErrors.CodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, tt.wantCode))
		})
	}
}

func TestEvaluateRequestNormalize(t *testing.T) {
	req := &EvaluateRequest{Identity: "  u1 ", Tier: " standard\n"}
	req.Normalize()
	assert.Equal(t, "u1", req.Identity)
	assert.Equal(t, "standard", req.Tier)
}

func TestResetAnomalyRequestValidate(t *testing.T) {
	t.Run("valid after normalize", func(t *testing.T) {
		req := &ResetAnomalyRequest{Identity: " u1 "}
		req.Normalize()
		assert.NoError(t, req.Validate())
		assert.Equal(t, "u1", req.Identity)
	})

	t.Run("empty identity rejected", func(t *testing.T) {
		req := &ResetAnomalyRequest{}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeInvalidInput))
	})
}
