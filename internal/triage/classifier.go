// Package triage turns raw patient records into severity tiers by deriving
// clinical features and consulting the external risk oracle.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/oracle"
	"github.com/dhruthiaithal/Microlabs-Triage/internal/vitals"
)

// ErrOracleUnavailable means the risk oracle could not be reached or
// answered with a non-success status. The caller must leave the patient's
// tier untouched.
var ErrOracleUnavailable = errors.New("risk oracle unavailable")

type RiskOracle interface {
	Predict(ctx context.Context, req oracle.RiskRequest) (oracle.RiskResponse, error)
}

// Result carries the new tier, label, and intervention for the caller to
// apply atomically. The classifier itself never mutates shared state.
type Result struct {
	Tier         models.SeverityTier
	RiskLabel    string // uppercase-normalized oracle label
	Intervention string
}

type Classifier struct {
	oracle RiskOracle
	now    func() time.Time
}

func NewClassifier(o RiskOracle) *Classifier {
	return &Classifier{
		oracle: o,
		now:    time.Now,
	}
}

// Classify derives features and asks the oracle for a verdict. Invalid
// vitals fail before any oracle contact.
func (c *Classifier) Classify(ctx context.Context, p models.Patient) (Result, error) {
	feats, err := vitals.Derive(p.Vitals, p.Symptoms)
	if err != nil {
		return Result{}, err
	}

	req := oracle.RiskRequest{
		Age:           p.Age(c.now()),
		Sex:           p.Sex,
		HeartRate:     p.Vitals.HeartRate,
		SystolicBP:    p.Vitals.SystolicBP,
		DiastolicBP:   p.Vitals.DiastolicBP,
		Respiratory:   p.Vitals.RespiratoryRate,
		SpO2:          p.Vitals.SpO2,
		Temperature:   p.Vitals.Temperature,
		Dyspnea:       boolToInt(p.Symptoms.Dyspnea),
		ChestPain:     boolToInt(p.Symptoms.ChestPain),
		Confusion:     boolToInt(p.Symptoms.Confusion),
		Comorbidity:   boolToInt(p.Symptoms.Comorbidity),
		PulsePressure: feats.PulsePressure,
		MAP:           feats.MeanArterialPressure,
		ShockIndex:    feats.ShockIndex,
		AbnormalCount: feats.AbnormalCount,
	}

	resp, err := c.oracle.Predict(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	return Result{
		Tier:         MapRiskLabel(resp.Risk),
		RiskLabel:    strings.ToUpper(strings.TrimSpace(resp.Risk)),
		Intervention: resp.Intervention,
	}, nil
}

// MapRiskLabel converts the oracle's free-text label to a tier. First
// matching rule wins, case-insensitive substring match. An unrecognized
// label maps to Pending: classification incomplete, not an error.
func MapRiskLabel(label string) models.SeverityTier {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "red"):
		return models.TierImmediate
	case strings.Contains(l, "yellow"):
		return models.TierDelayed
	case strings.Contains(l, "green"), strings.Contains(l, "low"):
		return models.TierMinimal
	default:
		return models.TierPending
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
