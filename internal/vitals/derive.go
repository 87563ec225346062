package vitals

import (
	"errors"
	"fmt"
	"math"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

// ErrInvalidVitals means the input failed local validation and never
// reached the risk oracle.
var ErrInvalidVitals = errors.New("invalid vitals")

// Features are the derived clinical quantities submitted to the risk
// oracle. Recomputed on every classification, never stored.
type Features struct {
	PulsePressure        float64 `json:"pulse_pressure"`
	MeanArterialPressure float64 `json:"map"`
	ShockIndex           float64 `json:"shock_index"`
	AbnormalCount        int     `json:"abnormal_count"`
}

// Derive computes clinical features from raw vitals and symptom flags.
// Pure: same input always yields the same output.
func Derive(v models.Vitals, s models.Symptoms) (Features, error) {
	if err := Validate(v); err != nil {
		return Features{}, err
	}

	f := Features{
		PulsePressure: v.SystolicBP - v.DiastolicBP,
		ShockIndex:    v.HeartRate / v.SystolicBP,
	}
	f.MeanArterialPressure = v.DiastolicBP + f.PulsePressure/3

	if v.HeartRate < 50 || v.HeartRate > 110 {
		f.AbnormalCount++
	}
	if v.SystolicBP < 90 || v.SystolicBP > 180 {
		f.AbnormalCount++
	}
	if v.SpO2 < 93 {
		f.AbnormalCount++
	}
	if v.RespiratoryRate < 10 || v.RespiratoryRate > 25 {
		f.AbnormalCount++
	}
	if v.Temperature < 35.5 || v.Temperature > 38.5 {
		f.AbnormalCount++
	}
	for _, flag := range []bool{s.Dyspnea, s.ChestPain, s.Confusion, s.Comorbidity} {
		if flag {
			f.AbnormalCount++
		}
	}

	return f, nil
}

// Validate checks the raw vitals without deriving anything. Shock index
// requires a strictly positive systolic pressure.
func Validate(v models.Vitals) error {
	fields := []struct {
		name string
		val  float64
	}{
		{"hr", v.HeartRate},
		{"sbp", v.SystolicBP},
		{"dbp", v.DiastolicBP},
		{"rr", v.RespiratoryRate},
		{"spo2", v.SpO2},
		{"temp", v.Temperature},
	}
	for _, f := range fields {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidVitals, f.name)
		}
	}
	if v.SystolicBP <= 0 {
		return fmt.Errorf("%w: systolic pressure must be positive, got %g", ErrInvalidVitals, v.SystolicBP)
	}
	return nil
}
