package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/allocation"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/events"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/forecast"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/journal"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/triage"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/vitals"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockRiskOracle struct {
	resp oracle.RiskResponse
	err  error
}

func (m *mockRiskOracle) Predict(ctx context.Context, req oracle.RiskRequest) (oracle.RiskResponse, error) {
	if m.err != nil {
		return oracle.RiskResponse{}, m.err
	}
	return m.resp, nil
}

type mockAllocOracle struct {
	resp []oracle.Assignment
	err  error
}

func (m *mockAllocOracle) Allocate(ctx context.Context, req oracle.AllocationRequest) ([]oracle.Assignment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

// mockForecastOracle is locked because the monitor's refresh loop reads it
// concurrently with test setup.
type mockForecastOracle struct {
	mu     sync.Mutex
	points []models.ForecastPoint
	err    error
}

func (m *mockForecastOracle) set(points []models.ForecastPoint, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = points
	m.err = err
}

func (m *mockForecastOracle) Fetch(ctx context.Context, hours int) ([]models.ForecastPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.points, nil
}

// memJournal implements journal.Repository in memory for tests.
type memJournal struct {
	mu     sync.Mutex
	events []models.TriageEvent
}

func (j *memJournal) Add(ctx context.Context, e *models.TriageEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *e)
	return nil
}

func (j *memJournal) ListEvents(ctx context.Context, opts journal.Filter) ([]models.TriageEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []models.TriageEvent
	for _, e := range j.events {
		if opts.PatientID != "" && e.PatientID != opts.PatientID {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (j *memJournal) waitFor(t *testing.T, kind models.EventKind) models.TriageEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		evts, _ := j.ListEvents(context.Background(), journal.Filter{Kind: kind})
		if len(evts) > 0 {
			return evts[len(evts)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s event", kind)
	return models.TriageEvent{}
}

type testEnv struct {
	engine   *Engine
	journal  *memJournal
	risk     *mockRiskOracle
	alloc    *mockAllocOracle
	forecast *mockForecastOracle
	cancel   context.CancelFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	risk := &mockRiskOracle{resp: oracle.RiskResponse{Risk: "Minimal (GREEN)", Intervention: "Nil"}}
	alloc := &mockAllocOracle{}
	fc := &mockForecastOracle{err: errors.New("not configured")}
	jr := &memJournal{}

	facility := models.Facility{
		Name:         "Microlabs General",
		TotalBeds:    120,
		ICUBeds:      10,
		Ventilators:  6,
		OxygenSupply: 500,
		StaffCount:   40,
		Hospitals:    []models.Hospital{{ID: "h1", Name: "St. Mary", Capacity: 60}},
	}

	reg := registry.New()
	// Long interval: tests drive refreshes explicitly.
	monitor := forecast.NewMonitor(fc, time.Hour, 24, 6)
	eng := New(
		facility,
		reg,
		triage.NewClassifier(risk),
		monitor,
		allocation.NewCoordinator(alloc, reg),
		jr,
		events.NewBroadcaster(),
		2, 50,
	)

	ctx, cancel := context.WithCancel(context.Background())
	eng.Start(ctx)
	t.Cleanup(func() {
		cancel()
		eng.Stop()
	})

	return &testEnv{engine: eng, journal: jr, risk: risk, alloc: alloc, forecast: fc, cancel: cancel}
}

func draft(name string) IntakeDraft {
	return IntakeDraft{
		Name: name,
		Vitals: models.Vitals{
			HeartRate:       80,
			SystolicBP:      120,
			DiastolicBP:     80,
			RespiratoryRate: 16,
			SpO2:            98,
			Temperature:     36.8,
		},
	}
}

func TestEngine_IntakeStartsPending(t *testing.T) {
	env := newTestEnv(t)

	p, err := env.engine.Intake(context.Background(), "nurse-1", draft("Ada"))
	if err != nil {
		t.Fatalf("Intake failed: %v", err)
	}

	if p.ID == "" {
		t.Error("expected a generated patient id")
	}
	if p.Tier != models.TierPending {
		t.Errorf("expected Pending tier, got %v", p.Tier)
	}
	if p.RiskLabel != nil {
		t.Error("expected nil risk label before classification")
	}

	evt := env.journal.waitFor(t, models.EventIntake)
	if evt.PatientID != p.ID || evt.Actor != "nurse-1" {
		t.Errorf("intake event not journaled faithfully: %+v", evt)
	}
}

func TestEngine_IntakeRejectsInvalidVitals(t *testing.T) {
	env := newTestEnv(t)

	d := draft("Bad Vitals")
	d.Vitals.SystolicBP = 0

	_, err := env.engine.Intake(context.Background(), "nurse-1", d)
	if !errors.Is(err, vitals.ErrInvalidVitals) {
		t.Fatalf("expected ErrInvalidVitals, got %v", err)
	}
	if len(env.engine.Queue()) != 0 {
		t.Error("invalid draft must not enter the queue")
	}
}

func TestEngine_ClassifyAppliesResult(t *testing.T) {
	env := newTestEnv(t)
	env.risk.resp = oracle.RiskResponse{Risk: "RED - sepsis risk", Intervention: "ICU"}

	p, _ := env.engine.Intake(context.Background(), "nurse-1", draft("Ada"))

	updated, err := env.engine.Classify(context.Background(), "dr-5", p.ID)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if updated.Tier != models.TierImmediate {
		t.Errorf("expected Immediate, got %v", updated.Tier)
	}
	if updated.RiskLabel == nil || *updated.RiskLabel != "RED - SEPSIS RISK" {
		t.Errorf("expected uppercase-normalized label containing RED, got %v", updated.RiskLabel)
	}
	if updated.Intervention == nil || *updated.Intervention != "ICU" {
		t.Errorf("intervention not stored: %v", updated.Intervention)
	}
}

func TestEngine_ClassifyOracleFailureLeavesTier(t *testing.T) {
	env := newTestEnv(t)
	env.risk.resp = oracle.RiskResponse{Risk: "yellow"}

	p, _ := env.engine.Intake(context.Background(), "nurse-1", draft("Ada"))
	if _, err := env.engine.Classify(context.Background(), "dr-5", p.ID); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	env.risk.err = errors.New("connection refused")
	_, err := env.engine.Classify(context.Background(), "dr-5", p.ID)
	if !errors.Is(err, triage.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}

	queue := env.engine.Queue()
	if queue[0].Tier != models.TierDelayed {
		t.Errorf("tier changed across a failed oracle call: %v", queue[0].Tier)
	}
}

func TestEngine_QueueOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _ := env.engine.Intake(ctx, "nurse-1", draft("A"))
	b, _ := env.engine.Intake(ctx, "nurse-1", draft("B"))
	c, _ := env.engine.Intake(ctx, "nurse-1", draft("C"))

	env.risk.resp = oracle.RiskResponse{Risk: "Delayed (YELLOW)"}
	env.engine.Classify(ctx, "dr-5", a.ID)
	env.engine.Classify(ctx, "dr-5", b.ID)
	env.risk.resp = oracle.RiskResponse{Risk: "Immediate (RED)"}
	env.engine.Classify(ctx, "dr-5", c.ID)

	queue := env.engine.Queue()
	want := []string{c.ID, a.ID, b.ID}
	for i, id := range want {
		if queue[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, queue[i].ID)
		}
	}
}

func TestEngine_AdmitRemoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, _ := env.engine.Intake(ctx, "nurse-1", draft("Ada"))
	if err := env.engine.Admit(ctx, "dr-5", p.ID); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if len(env.engine.Queue()) != 0 {
		t.Error("admitted patient still in queue")
	}
	if err := env.engine.Admit(ctx, "dr-5", p.ID); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second admit, got %v", err)
	}
}

func TestEngine_UpdateVitalsKeepsTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.risk.resp = oracle.RiskResponse{Risk: "green"}
	p, _ := env.engine.Intake(ctx, "nurse-1", draft("Ada"))
	env.engine.Classify(ctx, "dr-5", p.ID)

	v := p.Vitals
	v.HeartRate = 135
	updated, err := env.engine.UpdateVitals(ctx, "nurse-1", p.ID, v, models.Symptoms{Dyspnea: true}, "worsening")
	if err != nil {
		t.Fatalf("UpdateVitals failed: %v", err)
	}

	if updated.Vitals.HeartRate != 135 || !updated.Symptoms.Dyspnea {
		t.Errorf("vitals not replaced: %+v", updated.Vitals)
	}
	if updated.Tier != models.TierMinimal {
		t.Errorf("vitals edit must not change the tier, got %v", updated.Tier)
	}
}

func TestEngine_AllocationPartialResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p1, _ := env.engine.Intake(ctx, "nurse-1", draft("P1"))
	p2, _ := env.engine.Intake(ctx, "nurse-1", draft("P2"))

	env.alloc.resp = []oracle.Assignment{
		{PatientID: p1.ID, HospitalID: "h1", Distance: 3.1, Severity: "pending"},
	}

	assignments, err := env.engine.RunAllocation(ctx, "coord-1")
	if err != nil {
		t.Fatalf("RunAllocation failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(assignments))
	}

	queue := env.engine.Queue()
	for _, p := range queue {
		switch p.ID {
		case p1.ID:
			if p.AssignedHospitalID == nil || *p.AssignedHospitalID != "h1" {
				t.Errorf("p1 not assigned: %+v", p.AssignedHospitalID)
			}
		case p2.ID:
			if p.AssignedHospitalID != nil {
				t.Error("p2 must stay unassigned")
			}
		}
	}
}

func TestEngine_ForecastSummaryAndShortageEvent(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.ForecastSummary(); !errors.Is(err, forecast.ErrForecastUnavailable) {
		t.Fatalf("expected ErrForecastUnavailable before first fetch, got %v", err)
	}

	env.forecast.set([]models.ForecastPoint{
		{Timestamp: time.Now().Add(time.Hour), ICUDemand: 14, VentilatorDemand: 2, OxygenDemand: 100},
	}, nil)

	s, err := env.engine.RefreshForecast(context.Background())
	if err != nil {
		t.Fatalf("RefreshForecast failed: %v", err)
	}
	if !s.ICUShortage {
		t.Error("ICU demand 14 vs 10 beds must flag a shortage")
	}
	if s.VentilatorShortage || s.OxygenShortage {
		t.Error("only the ICU series exceeds capacity")
	}

	evt := env.journal.waitFor(t, models.EventShortage)
	if evt.PatientID != "" {
		t.Errorf("shortage is a facility-level event, got patient %q", evt.PatientID)
	}
}

func TestEngine_UpdateCapacityAffectsSummary(t *testing.T) {
	env := newTestEnv(t)

	env.forecast.set([]models.ForecastPoint{
		{Timestamp: time.Now().Add(time.Hour), ICUDemand: 14, VentilatorDemand: 2, OxygenDemand: 100},
	}, nil)
	if _, err := env.engine.RefreshForecast(context.Background()); err != nil {
		t.Fatalf("RefreshForecast failed: %v", err)
	}

	env.engine.UpdateCapacity(120, 20, 6, 500, 40)

	s, err := env.engine.ForecastSummary()
	if err != nil {
		t.Fatalf("ForecastSummary failed: %v", err)
	}
	if s.ICUShortage {
		t.Error("raising ICU capacity to 20 must clear the shortage")
	}
}
