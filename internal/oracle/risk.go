package oracle

import (
	"context"
	"net/http"
	"time"
)

// RiskRequest is the flat feature record the risk oracle expects. Symptom
// flags travel as 0/1.
type RiskRequest struct {
	Age           int     `json:"age"`
	Sex           int     `json:"sex"`
	HeartRate     float64 `json:"hr"`
	SystolicBP    float64 `json:"sbp"`
	DiastolicBP   float64 `json:"dbp"`
	Respiratory   float64 `json:"rr"`
	SpO2          float64 `json:"spo2"`
	Temperature   float64 `json:"temp"`
	Dyspnea       int     `json:"dyspnea"`
	ChestPain     int     `json:"chest_pain"`
	Confusion     int     `json:"confusion"`
	Comorbidity   int     `json:"comorb"`
	PulsePressure float64 `json:"pulse_pressure"`
	MAP           float64 `json:"map"`
	ShockIndex    float64 `json:"shock_index"`
	AbnormalCount int     `json:"abnormal_count"`
}

// RiskResponse is the oracle's categorical verdict, e.g.
// {"risk": "Immediate (RED)", "intervention": "ICU"}.
type RiskResponse struct {
	Risk         string `json:"risk"`
	Intervention string `json:"intervention"`
}

type RiskClient struct {
	url    string
	client *http.Client
}

func NewRiskClient(url string, timeout time.Duration) *RiskClient {
	return &RiskClient{
		url:    url,
		client: newHTTPClient(timeout),
	}
}

func (c *RiskClient) Predict(ctx context.Context, req RiskRequest) (RiskResponse, error) {
	var resp RiskResponse
	if err := postJSON(ctx, c.client, c.url, req, &resp); err != nil {
		return RiskResponse{}, err
	}
	return resp, nil
}
