package oracle

import (
	"context"
	"net/http"
	"time"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

// AllocationPatient is one queue entry as submitted to the allocation
// oracle.
type AllocationPatient struct {
	PatientID string `json:"patient_id"`
	Severity  string `json:"severity"`
	Risk      string `json:"risk,omitempty"`
}

type AllocationRequest struct {
	Patients  []AllocationPatient `json:"patients"`
	Hospitals []models.Hospital   `json:"hospitals"`
}

// Assignment is one patient-to-hospital pairing returned by the oracle.
// The oracle may return assignments for a subset of the submitted patients.
type Assignment struct {
	PatientID  string  `json:"patient_id"`
	HospitalID string  `json:"hospital_id"`
	Distance   float64 `json:"distance"`
	Severity   string  `json:"severity"`
}

type AllocationClient struct {
	url    string
	client *http.Client
}

func NewAllocationClient(url string, timeout time.Duration) *AllocationClient {
	return &AllocationClient{
		url:    url,
		client: newHTTPClient(timeout),
	}
}

func (c *AllocationClient) Allocate(ctx context.Context, req AllocationRequest) ([]Assignment, error) {
	var assignments []Assignment
	if err := postJSON(ctx, c.client, c.url, req, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}
