// Package engine is the owned instance behind the whole triage surface:
// intake, classification, the ordered queue, admission, forecasts, and
// allocation. Nothing outside this package touches the registry directly.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/allocation"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/events"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/forecast"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/journal"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/triage"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/vitals"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/worker"
)

type Engine struct {
	registry    *registry.Registry
	classifier  *triage.Classifier
	monitor     *forecast.Monitor
	coordinator *allocation.Coordinator
	journal     journal.Repository
	broadcaster *events.Broadcaster
	pool        *worker.WorkerPool
	now         func() time.Time

	workerCount int
	bufferSize  int

	mu           sync.RWMutex
	facility     models.Facility
	lastShortage *models.ShortageSummary
}

func New(
	facility models.Facility,
	reg *registry.Registry,
	classifier *triage.Classifier,
	monitor *forecast.Monitor,
	coordinator *allocation.Coordinator,
	jr journal.Repository,
	broadcaster *events.Broadcaster,
	workerCount, bufferSize int,
) *Engine {
	return &Engine{
		registry:    reg,
		classifier:  classifier,
		monitor:     monitor,
		coordinator: coordinator,
		journal:     jr,
		broadcaster: broadcaster,
		now:         time.Now,
		workerCount: workerCount,
		bufferSize:  bufferSize,
		facility:    facility,
	}
}

// Start launches the journal pipeline and the forecast monitor.
func (e *Engine) Start(ctx context.Context) {
	processor := func(ctx context.Context, job worker.Job) error {
		event := job.(*models.TriageEvent)

		if err := e.journal.Add(ctx, event); err != nil {
			slog.Error("error journaling event", "kind", event.Kind, "error", err)
			return err
		}

		if e.broadcaster != nil {
			e.broadcaster.Broadcast(event)
		}
		return nil
	}

	e.pool = worker.NewWorkerPool(e.workerCount, e.bufferSize, processor)
	e.pool.Start(ctx)

	if e.monitor != nil {
		e.monitor.OnRefresh(func(models.Forecast) { e.checkShortage() })
		e.monitor.Start(ctx)
	}
}

// Stop drains the journal pipeline and waits for the monitor loop. Call
// after cancelling the context passed to Start.
func (e *Engine) Stop() {
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.pool.Stop()
	slog.Info("engine stopped")
}

// IntakeDraft carries the caller-supplied fields for a new patient.
type IntakeDraft struct {
	Name        string          `json:"name"`
	DateOfBirth time.Time       `json:"date_of_birth,omitzero"`
	Sex         int             `json:"sex"`
	Vitals      models.Vitals   `json:"vitals"`
	Symptoms    models.Symptoms `json:"symptoms"`
	Notes       string          `json:"notes"`
}

// Intake validates the draft's vitals and inserts the patient with a fresh
// identifier and tier Pending. A Pending patient is visible in the queue
// (at the bottom) but is not considered safely triaged until classified.
func (e *Engine) Intake(ctx context.Context, actor string, draft IntakeDraft) (models.Patient, error) {
	if err := vitals.Validate(draft.Vitals); err != nil {
		return models.Patient{}, err
	}

	p := models.Patient{
		ID:          models.NewPatientID(),
		Name:        draft.Name,
		DateOfBirth: draft.DateOfBirth,
		Sex:         draft.Sex,
		Vitals:      draft.Vitals,
		Symptoms:    draft.Symptoms,
		Notes:       draft.Notes,
		ArrivedAt:   e.now(),
		Tier:        models.TierPending,
	}

	if err := e.registry.Insert(p); err != nil {
		return models.Patient{}, err
	}

	e.record(actor, p.ID, models.EventIntake, fmt.Sprintf("name=%s", p.Name))
	slog.Info("patient admitted to queue", "patient_id", p.ID)
	return p, nil
}

// Classify runs the full classification pipeline and applies the result in
// one registry mutation. A failed or cancelled oracle call leaves the
// patient exactly as it was.
func (e *Engine) Classify(ctx context.Context, actor, patientID string) (models.Patient, error) {
	p, err := e.registry.Get(patientID)
	if err != nil {
		return models.Patient{}, err
	}

	res, err := e.classifier.Classify(ctx, p)
	if err != nil {
		return models.Patient{}, err
	}

	updated, err := e.registry.Update(patientID, func(p *models.Patient) {
		label := res.RiskLabel
		intervention := res.Intervention
		p.Tier = res.Tier
		p.RiskLabel = &label
		p.Intervention = &intervention
	})
	if err != nil {
		return models.Patient{}, err
	}

	e.record(actor, patientID, models.EventClassified,
		fmt.Sprintf("tier=%s risk=%s intervention=%s", res.Tier, res.RiskLabel, res.Intervention))
	slog.Info("patient classified", "patient_id", patientID, "tier", res.Tier.String())
	return updated, nil
}

// UpdateVitals replaces the patient's raw vitals, symptoms, and notes after
// validation. The tier is deliberately left untouched: only a successful
// classification run may change it.
func (e *Engine) UpdateVitals(ctx context.Context, actor, patientID string, v models.Vitals, s models.Symptoms, notes string) (models.Patient, error) {
	if err := vitals.Validate(v); err != nil {
		return models.Patient{}, err
	}

	updated, err := e.registry.Update(patientID, func(p *models.Patient) {
		p.Vitals = v
		p.Symptoms = s
		p.Notes = notes
	})
	if err != nil {
		return models.Patient{}, err
	}

	e.record(actor, patientID, models.EventVitalsUpdated, "")
	return updated, nil
}

// Queue returns the current snapshot, most urgent first.
func (e *Engine) Queue() []models.Patient {
	return e.registry.Snapshot()
}

// Admit removes the patient permanently. Not a status change.
func (e *Engine) Admit(ctx context.Context, actor, patientID string) error {
	if err := e.registry.Remove(patientID); err != nil {
		return err
	}
	e.record(actor, patientID, models.EventAdmitted, "")
	slog.Info("patient admitted and removed from queue", "patient_id", patientID)
	return nil
}

// ForecastSummary recomputes the shortage summary against the current
// facility capacities.
func (e *Engine) ForecastSummary() (models.ShortageSummary, error) {
	return e.monitor.Summary(e.Facility())
}

// RefreshForecast triggers an on-demand refresh outside the schedule and
// returns the resulting summary.
func (e *Engine) RefreshForecast(ctx context.Context) (models.ShortageSummary, error) {
	if _, err := e.monitor.Refresh(ctx); err != nil {
		return models.ShortageSummary{}, err
	}
	return e.monitor.Summary(e.Facility())
}

// RunAllocation submits the queue and roster to the allocation oracle and
// merges the result.
func (e *Engine) RunAllocation(ctx context.Context, actor string) ([]oracle.Assignment, error) {
	facility := e.Facility()
	assignments, err := e.coordinator.Run(ctx, facility.Hospitals)
	if err != nil {
		return nil, err
	}

	for _, a := range assignments {
		e.record(actor, a.PatientID, models.EventAllocated,
			fmt.Sprintf("hospital=%s distance=%.2f", a.HospitalID, a.Distance))
	}
	return assignments, nil
}

// Events queries the journal.
func (e *Engine) Events(ctx context.Context, opts journal.Filter) ([]models.TriageEvent, error) {
	return e.journal.ListEvents(ctx, opts)
}

// Facility returns a copy, roster included.
func (e *Engine) Facility() models.Facility {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f := e.facility
	f.Hospitals = append([]models.Hospital(nil), e.facility.Hospitals...)
	return f
}

// UpdateCapacity edits the facility's capacity fields. Identity (name,
// roster) stays fixed for the session.
func (e *Engine) UpdateCapacity(totalBeds, icuBeds, ventilators int, oxygenSupply float64, staffCount int) models.Facility {
	e.mu.Lock()
	e.facility.TotalBeds = totalBeds
	e.facility.ICUBeds = icuBeds
	e.facility.Ventilators = ventilators
	e.facility.OxygenSupply = oxygenSupply
	e.facility.StaffCount = staffCount
	e.mu.Unlock()

	// Capacity affects the shortage comparison immediately.
	e.checkShortage()
	return e.Facility()
}

// QueueDepth reports the active patient count for the health endpoint.
func (e *Engine) QueueDepth() int {
	return e.registry.Len()
}

// ForecastFetchedAt reports when the held projection was fetched, zero when
// none has been yet.
func (e *Engine) ForecastFetchedAt() time.Time {
	cur, ok := e.monitor.Current()
	if !ok {
		return time.Time{}
	}
	return cur.FetchedAt
}

// checkShortage recomputes the summary and journals a transition whenever
// the flag set changes.
func (e *Engine) checkShortage() {
	s, err := e.monitor.Summary(e.Facility())
	if err != nil {
		return
	}

	e.mu.Lock()
	prev := e.lastShortage
	e.lastShortage = &s
	e.mu.Unlock()

	if prev == nil {
		if !s.Shortage() {
			return
		}
	} else if prev.ICUShortage == s.ICUShortage &&
		prev.VentilatorShortage == s.VentilatorShortage &&
		prev.OxygenShortage == s.OxygenShortage {
		return
	}

	detail := fmt.Sprintf("icu=%t ventilator=%t oxygen=%t", s.ICUShortage, s.VentilatorShortage, s.OxygenShortage)
	e.record("", "", models.EventShortage, detail)
	if s.Shortage() {
		slog.Warn("projected demand exceeds capacity", "detail", detail)
	}
}

func (e *Engine) record(actor, patientID string, kind models.EventKind, detail string) {
	event := &models.TriageEvent{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Actor:     actor,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: e.now(),
	}
	if e.pool != nil {
		e.pool.Submit(event)
	}
}
