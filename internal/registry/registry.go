// Package registry owns the set of active patients. It is the only mutable
// shared state in the engine; every read and write goes through the four
// operations below.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

var (
	ErrDuplicateID = errors.New("duplicate patient id")
	ErrNotFound    = errors.New("patient not found")
)

type entry struct {
	patient models.Patient
	seq     uint64 // insertion order, tie-break within a tier
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

func (r *Registry) Insert(p models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}

	r.nextSeq++
	r.entries[p.ID] = &entry{patient: clone(p), seq: r.nextSeq}
	return nil
}

// Update applies mutate to the stored patient while holding the write lock,
// so readers see either the old or the fully mutated record, never a mix.
// The insertion sequence number is preserved: a reclassified patient keeps
// its relative position among same-tier peers.
func (r *Registry) Update(id string, mutate func(*models.Patient)) (models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return models.Patient{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	mutate(&e.patient)
	e.patient.ID = id // identity is immutable
	return clone(e.patient), nil
}

// Remove permanently deletes the patient. Used when a patient is admitted
// or otherwise processed; not a status change.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

func (r *Registry) Get(id string) (models.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[id]
	if !exists {
		return models.Patient{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(e.patient), nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the active queue ordered by severity tier descending.
// Patients sharing a tier appear in insertion order via the explicit
// sequence number, independent of sort stability.
func (r *Registry) Snapshot() []models.Patient {
	r.mu.RLock()
	ordered := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		ordered = append(ordered, entry{patient: clone(e.patient), seq: e.seq})
	}
	r.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].patient.Tier != ordered[j].patient.Tier {
			return ordered[i].patient.Tier > ordered[j].patient.Tier
		}
		return ordered[i].seq < ordered[j].seq
	})

	patients := make([]models.Patient, 0, len(ordered))
	for _, e := range ordered {
		patients = append(patients, e.patient)
	}
	return patients
}

// clone deep-copies the pointer fields so callers never alias
// registry-owned memory.
func clone(p models.Patient) models.Patient {
	if p.RiskLabel != nil {
		v := *p.RiskLabel
		p.RiskLabel = &v
	}
	if p.Intervention != nil {
		v := *p.Intervention
		p.Intervention = &v
	}
	if p.AssignedHospitalID != nil {
		v := *p.AssignedHospitalID
		p.AssignedHospitalID = &v
	}
	if p.AssignedDistance != nil {
		v := *p.AssignedDistance
		p.AssignedDistance = &v
	}
	return p
}
