// Package allocation submits the active queue to the allocation oracle and
// merges the returned patient-hospital assignments back into the registry.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
)

// ErrAllocationFailed means the oracle was unreachable, answered with a
// non-success status, or returned a malformed response. No patient is
// mutated in any of these cases.
var ErrAllocationFailed = errors.New("allocation failed")

type Oracle interface {
	Allocate(ctx context.Context, req oracle.AllocationRequest) ([]oracle.Assignment, error)
}

type Coordinator struct {
	oracle   Oracle
	registry *registry.Registry
}

func NewCoordinator(o Oracle, reg *registry.Registry) *Coordinator {
	return &Coordinator{
		oracle:   o,
		registry: reg,
	}
}

// Run submits the full current snapshot plus the hospital roster in one
// request and merges the result. The oracle may assign only a subset of
// patients; the rest stay unassigned, which is not an error. Merging starts
// only after the entire response has been validated.
func (c *Coordinator) Run(ctx context.Context, hospitals []models.Hospital) ([]oracle.Assignment, error) {
	snap := c.registry.Snapshot()

	req := oracle.AllocationRequest{
		Patients:  make([]oracle.AllocationPatient, 0, len(snap)),
		Hospitals: hospitals,
	}
	for _, p := range snap {
		ap := oracle.AllocationPatient{
			PatientID: p.ID,
			Severity:  p.Tier.String(),
		}
		if p.RiskLabel != nil {
			ap.Risk = *p.RiskLabel
		}
		req.Patients = append(req.Patients, ap)
	}

	assignments, err := c.oracle.Allocate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}

	for _, a := range assignments {
		if err := validate(a); err != nil {
			return nil, err
		}
	}

	for _, a := range assignments {
		hospitalID := a.HospitalID
		distance := a.Distance
		_, err := c.registry.Update(a.PatientID, func(p *models.Patient) {
			p.AssignedHospitalID = &hospitalID
			p.AssignedDistance = &distance
		})
		if err != nil {
			// Patient admitted between snapshot and response; nothing to
			// merge for them.
			if errors.Is(err, registry.ErrNotFound) {
				slog.Warn("skipping assignment for departed patient", "patient_id", a.PatientID)
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
		}
	}

	slog.Info("allocation merged", "submitted", len(snap), "assigned", len(assignments))
	return assignments, nil
}

func validate(a oracle.Assignment) error {
	if a.PatientID == "" || a.HospitalID == "" {
		return fmt.Errorf("%w: assignment with empty identifiers", ErrAllocationFailed)
	}
	if math.IsNaN(a.Distance) || math.IsInf(a.Distance, 0) || a.Distance < 0 {
		return fmt.Errorf("%w: assignment for %s has invalid distance %g", ErrAllocationFailed, a.PatientID, a.Distance)
	}
	return nil
}
