package events

import "time"

// SessionExpired is published once per invalidated session.
type SessionExpired struct {
	PrincipalID string    `json:"principalId"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	At          time.Time `json:"at"`
}

// IngestionStage is published on every upload job transition.
type IngestionStage struct {
	JobID      string    `json:"jobId"`
	Stage      string    `json:"stage"`
	Leg        string    `json:"leg,omitempty"`
	Cause      string    `json:"cause,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	At         time.Time `json:"at"`
}

// RecommendationsUpdated is published when a source's slice is replaced or
// its failure flag changes.
type RecommendationsUpdated struct {
	Source   string    `json:"source"`
	Sequence uint64    `json:"sequence"`
	Count    int       `json:"count"`
	Failed   bool      `json:"failed"`
	At       time.Time `json:"at"`
}
