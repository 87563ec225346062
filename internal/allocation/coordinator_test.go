package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/registry"
)

// mockAllocOracle implements Oracle for testing.
type mockAllocOracle struct {
	resp    []oracle.Assignment
	err     error
	lastReq oracle.AllocationRequest
}

func (m *mockAllocOracle) Allocate(ctx context.Context, req oracle.AllocationRequest) ([]oracle.Assignment, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func setupRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, p := range []models.Patient{
		{ID: "p1", Tier: models.TierImmediate},
		{ID: "p2", Tier: models.TierDelayed},
	} {
		if err := reg.Insert(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return reg
}

func roster() []models.Hospital {
	return []models.Hospital{{ID: "h1", Name: "General", Capacity: 40}}
}

func TestRun_PartialResultLeavesOthersUnassigned(t *testing.T) {
	reg := setupRegistry(t)
	mock := &mockAllocOracle{resp: []oracle.Assignment{
		{PatientID: "p1", HospitalID: "h1", Distance: 2.5, Severity: "immediate"},
	}}
	c := NewCoordinator(mock, reg)

	got, err := c.Run(context.Background(), roster())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(got))
	}

	p1, _ := reg.Get("p1")
	if p1.AssignedHospitalID == nil || *p1.AssignedHospitalID != "h1" {
		t.Errorf("p1 not assigned to h1: %+v", p1.AssignedHospitalID)
	}
	if p1.AssignedDistance == nil || *p1.AssignedDistance != 2.5 {
		t.Errorf("p1 distance not merged: %+v", p1.AssignedDistance)
	}

	p2, _ := reg.Get("p2")
	if p2.AssignedHospitalID != nil {
		t.Errorf("p2 must stay unassigned, got %s", *p2.AssignedHospitalID)
	}
}

func TestRun_SubmitsFullSnapshotAndRoster(t *testing.T) {
	reg := setupRegistry(t)
	mock := &mockAllocOracle{}
	c := NewCoordinator(mock, reg)

	if _, err := c.Run(context.Background(), roster()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(mock.lastReq.Patients) != 2 {
		t.Errorf("expected 2 patients submitted, got %d", len(mock.lastReq.Patients))
	}
	// Snapshot order: immediate first.
	if mock.lastReq.Patients[0].PatientID != "p1" || mock.lastReq.Patients[0].Severity != "immediate" {
		t.Errorf("unexpected first submission: %+v", mock.lastReq.Patients[0])
	}
	if len(mock.lastReq.Hospitals) != 1 || mock.lastReq.Hospitals[0].ID != "h1" {
		t.Errorf("roster not submitted: %+v", mock.lastReq.Hospitals)
	}
}

func TestRun_OracleFailureMutatesNothing(t *testing.T) {
	reg := setupRegistry(t)
	mock := &mockAllocOracle{err: errors.New("connection refused")}
	c := NewCoordinator(mock, reg)

	_, err := c.Run(context.Background(), roster())
	if !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("expected ErrAllocationFailed, got %v", err)
	}

	for _, id := range []string{"p1", "p2"} {
		p, _ := reg.Get(id)
		if p.AssignedHospitalID != nil {
			t.Errorf("%s mutated despite oracle failure", id)
		}
	}
}

func TestRun_MalformedResponseMutatesNothing(t *testing.T) {
	tests := []struct {
		name string
		resp []oracle.Assignment
	}{
		{"empty hospital id", []oracle.Assignment{
			{PatientID: "p1", HospitalID: "h1", Distance: 1},
			{PatientID: "p2", HospitalID: "", Distance: 2},
		}},
		{"negative distance", []oracle.Assignment{
			{PatientID: "p1", HospitalID: "h1", Distance: -3},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := setupRegistry(t)
			c := NewCoordinator(&mockAllocOracle{resp: tt.resp}, reg)

			_, err := c.Run(context.Background(), roster())
			if !errors.Is(err, ErrAllocationFailed) {
				t.Fatalf("expected ErrAllocationFailed, got %v", err)
			}

			// Validation failed, so even the well-formed element must not
			// have been merged.
			p1, _ := reg.Get("p1")
			if p1.AssignedHospitalID != nil {
				t.Error("p1 mutated despite malformed response")
			}
		})
	}
}

func TestRun_AssignmentForDepartedPatientIsSkipped(t *testing.T) {
	reg := setupRegistry(t)
	mock := &mockAllocOracle{resp: []oracle.Assignment{
		{PatientID: "gone", HospitalID: "h1", Distance: 1},
		{PatientID: "p2", HospitalID: "h1", Distance: 4},
	}}
	c := NewCoordinator(mock, reg)

	got, err := c.Run(context.Background(), roster())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected the oracle's 2 assignments returned, got %d", len(got))
	}

	p2, _ := reg.Get("p2")
	if p2.AssignedHospitalID == nil || *p2.AssignedHospitalID != "h1" {
		t.Errorf("p2 assignment lost because of a departed peer: %+v", p2.AssignedHospitalID)
	}
}
