package domain

import "time"

// Observation is one tagged verdict produced by a scoring rule.
type Observation struct {
	Tag      string  `json:"tag"`
	Bullish  bool    `json:"bullish"`
	Strength float64 `json:"strength"`
}

// SignalComponent is one sub-signal's score after all of its rules applied.
type SignalComponent struct {
	Name         string        `json:"name"`
	Weight       float64       `json:"weight"`
	Score        float64       `json:"score"`
	Observations []Observation `json:"observations,omitempty"`
}

// CompositeSignal is the weighted aggregate verdict for a symbol on a date.
type CompositeSignal struct {
	Symbol         string            `json:"symbol"`
	Date           time.Time         `json:"date"`
	Score          float64           `json:"score"`
	Classification Classification    `json:"classification"`
	Action         string            `json:"action"`
	Strength       float64           `json:"strength"` // weight share of components scoring above neutral
	Components     []SignalComponent `json:"components,omitempty"`
}
