// Package journal records triage events. The default DSN is ":memory:", so
// the journal lives and dies with the process like the rest of the engine
// state.
package journal

import (
	"context"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

type Filter struct {
	Limit     int
	PatientID string
	Kind      models.EventKind
}

type Repository interface {
	Add(ctx context.Context, e *models.TriageEvent) error
	ListEvents(ctx context.Context, opts Filter) ([]models.TriageEvent, error)
}
