package domain

import "time"

// CacheEntry is the record written after a task succeeds.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Task        string    `json:"task"`
	OutputHash  string    `json:"output_hash,omitzero"`
	Timestamp   time.Time `json:"timestamp"`
}
