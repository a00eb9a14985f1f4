package model

import (
	"time"

	"github.com/google/uuid"
)

// ConflictType tags the rule a conflict violates.
type ConflictType string

const (
	ConflictConverging     ConflictType = "converging-paths"
	ConflictResource       ConflictType = "resource-over-allocation"
	ConflictDelayCascade   ConflictType = "delay-bubble-up"
	ConflictSafetyDistance ConflictType = "safety-distance"
)

// ConflictSeverity ranks detector output for response prioritization.
type ConflictSeverity string

const (
	SeverityMedium   ConflictSeverity = "MEDIUM"
	SeverityHigh     ConflictSeverity = "HIGH"
	SeverityCritical ConflictSeverity = "CRITICAL"
)

// Conflict is one detected rule violation. Created by the detector,
// consumed by the reconciler and external alerting; not retained beyond
// the detection cycle unless escalated by a consumer.
type Conflict struct {
	ID          string           `json:"id"`
	Type        ConflictType     `json:"type"`
	Severity    ConflictSeverity `json:"severity"`
	TrainIDs    []string         `json:"trainIds"`
	Location    string           `json:"location"`
	Description string           `json:"description"`
	Action      string           `json:"action"`
	DetectedAt  time.Time        `json:"detectedAt"`
}

// NewConflict assigns a fresh identifier and detection timestamp.
func NewConflict(t ConflictType, sev ConflictSeverity, trains []string, location, description, action string, at time.Time) Conflict {
	return Conflict{
		ID:          uuid.NewString(),
		Type:        t,
		Severity:    sev,
		TrainIDs:    trains,
		Location:    location,
		Description: description,
		Action:      action,
		DetectedAt:  at,
	}
}

// Involves reports whether the conflict names the given train.
func (c *Conflict) Involves(trainID string) bool {
	for _, id := range c.TrainIDs {
		if id == trainID {
			return true
		}
	}
	return false
}
