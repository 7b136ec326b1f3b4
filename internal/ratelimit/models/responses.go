package models

import "time"

type RateLimitExceededResponse struct {
	Error      string    `json:"error"` // "rate limit exceeded"
	Code       string    `json:"code"`  // "RATE_LIMITED"
	Tier       string    `json:"tier"`
	RetryAfter int       `json:"retry_after"` // seconds
	ResetAt    time.Time `json:"reset_at"`
}

type ServiceOverloadedResponse struct {
	Error      string `json:"error"`   // "service_unavailable"
	Message    string `json:"message"` // "Service is temporarily overloaded..."
	RetryAfter int    `json:"retry_after"`
}

type AnomalyStateResponse struct {
	Identity      string    `json:"identity"`
	RequestCount  int64     `json:"request_count"`
	LastRequestAt time.Time `json:"last_request_at"`
	BurstCount    int       `json:"burst_count"`
	Flagged       bool      `json:"flagged"`
}

type ResetAnomalyResponse struct {
	Identity string `json:"identity"`
	Reset    bool   `json:"reset"`
}
