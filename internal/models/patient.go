package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SeverityTier orders patients by clinical urgency. Higher values sort
// first in the queue.
type SeverityTier int

const (
	TierPending SeverityTier = iota
	TierMinimal
	TierDelayed
	TierImmediate
)

func (t SeverityTier) String() string {
	switch t {
	case TierImmediate:
		return "immediate"
	case TierDelayed:
		return "delayed"
	case TierMinimal:
		return "minimal"
	default:
		return "pending"
	}
}

func ParseSeverityTier(s string) SeverityTier {
	switch strings.ToLower(s) {
	case "immediate":
		return TierImmediate
	case "delayed":
		return TierDelayed
	case "minimal":
		return TierMinimal
	default:
		return TierPending
	}
}

func (t SeverityTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *SeverityTier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseSeverityTier(s)
	return nil
}

// Vitals holds the raw measurements taken at intake. Field tags match the
// risk oracle's feature names.
type Vitals struct {
	HeartRate       float64 `json:"hr"`
	SystolicBP      float64 `json:"sbp"`
	DiastolicBP     float64 `json:"dbp"`
	RespiratoryRate float64 `json:"rr"`
	SpO2            float64 `json:"spo2"`
	Temperature     float64 `json:"temp"` // Celsius
}

type Symptoms struct {
	Dyspnea     bool `json:"dyspnea"`
	ChestPain   bool `json:"chest_pain"`
	Confusion   bool `json:"confusion"`
	Comorbidity bool `json:"comorb"`
}

type Patient struct {
	ID          string    `json:"id"` // immutable once assigned
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"date_of_birth,omitzero"` // zero = unknown
	Sex         int       `json:"sex"`                    // passed through to the oracle, never interpreted
	Vitals      Vitals    `json:"vitals"`
	Symptoms    Symptoms  `json:"symptoms"`
	Notes       string    `json:"notes,omitempty"`
	ArrivedAt   time.Time `json:"arrived_at"`

	Tier         SeverityTier `json:"tier"`
	RiskLabel    *string      `json:"risk_label,omitempty"`
	Intervention *string      `json:"intervention,omitempty"`

	AssignedHospitalID *string  `json:"assigned_hospital_id,omitempty"`
	AssignedDistance   *float64 `json:"assigned_distance,omitempty"`
}

func NewPatientID() string {
	return uuid.NewString()
}

const defaultAge = 30

// Age returns whole years at now, or defaultAge when the date of birth is
// unknown.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth.IsZero() {
		return defaultAge
	}
	years := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
