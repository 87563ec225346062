package models

import "time"

type EventKind string

const (
	EventIntake        EventKind = "INTAKE"
	EventClassified    EventKind = "CLASSIFIED"
	EventVitalsUpdated EventKind = "VITALS_UPDATED"
	EventAdmitted      EventKind = "ADMITTED"
	EventAllocated     EventKind = "ALLOCATED"
	EventShortage      EventKind = "SHORTAGE"
)

// TriageEvent is one entry in the engine's event journal. Actor is the
// caller-supplied opaque identifier, stored verbatim.
type TriageEvent struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id,omitempty"` // empty for facility-level events
	Actor     string    `json:"actor,omitempty"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
