package models

import (
	"strings"

	dErrors "aegis/pkg/domain-errors"
)

type EvaluateRequest struct {
	Identity string `json:"identity"`
	Tier     string `json:"tier"`
}

func (r *EvaluateRequest) Normalize() {
	if r == nil {
		return
	}
	r.Identity = strings.TrimSpace(r.Identity)
	r.Tier = strings.TrimSpace(r.Tier)
}

// Follows validation order: Size -> Required.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Identity) > 255 {
		return dErrors.New(dErrors.CodeInvalidInput, "identity must be 255 characters or less")
	}
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	if r.Tier == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "tier is required")
	}
	return nil
}

type ResetAnomalyRequest struct {
	Identity string `json:"identity"`
}

func (r *ResetAnomalyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Identity = strings.TrimSpace(r.Identity)
}

// Follows validation order: Size -> Required.
func (r *ResetAnomalyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Identity) > 255 {
		return dErrors.New(dErrors.CodeInvalidInput, "identity must be 255 characters or less")
	}
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	return nil
}
