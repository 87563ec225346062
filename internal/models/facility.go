package models

// Facility is the session-singleton describing the facility this engine
// runs for. Capacity fields may be edited; identity is fixed for the
// process lifetime.
type Facility struct {
	Name         string     `json:"name"`
	TotalBeds    int        `json:"total_beds"`
	ICUBeds      int        `json:"icu_beds"`
	Ventilators  int        `json:"ventilators"`
	OxygenSupply float64    `json:"oxygen_supply"` // deliverable L/min across the facility
	StaffCount   int        `json:"staff_count"`
	Hospitals    []Hospital `json:"hospitals"` // partner roster used by allocation
}

// Hospital is one partner destination in the allocation roster.
type Hospital struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Capacity  int     `json:"capacity"`
}
