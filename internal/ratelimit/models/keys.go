package models

import "strings"

// AnomalyKeyNamespace prefixes behavioral profile keys. Counter keys live
// under per-tier namespaces ("ratelimit:<tier>:"); keeping the two families
// apart is the only isolation between the subsystems, so they must never
// overlap.
const AnomalyKeyNamespace = "anomaly:"

// NewWindowKey builds the sliding-window counter key for an identity within
// a tier's namespace.
func NewWindowKey(namespace, identity string) string {
	return namespace + sanitizeKeySegment(identity)
}

// NewAnomalyKey builds the behavioral profile key for an identity.
func NewAnomalyKey(identity string) string {
	return AnomalyKeyNamespace + sanitizeKeySegment(identity)
}

// sanitizeKeySegment escapes delimiter characters in key segments to prevent
// key collision attacks where user-controlled identifiers containing ':'
// could manipulate adjacent buckets.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// This ensures no two distinct inputs produce the same sanitized output.
func sanitizeKeySegment(s string) string {
	// Order matters: escape the escape character first
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
