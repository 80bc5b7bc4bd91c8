package model

import (
	"time"

	"github.com/aarondl/opt/omit"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RawSample is a single telemetry record as recorded by the car.
//
//nolint:tagliatelle // keeping the recorded field names
type RawSample struct {
	Position
	Date     time.Time `json:"date"`
	Speed    float64   `json:"speed"`
	Throttle float64   `json:"throttle"`
	Brake    float64   `json:"brake"`
	RPM      float64   `json:"rpm"`
	Gear     int       `json:"n_gear"`
	DRS      int       `json:"drs"`
}

// DerivedSample is a RawSample enriched with the track position data.
//
//nolint:tagliatelle // keeping the recorded field names
type DerivedSample struct {
	RawSample
	TrackPercent     float64 `json:"track_percent"`
	EdgePercent      float64 `json:"edge_percent"`
	DistanceOffTrack float64 `json:"distance_off_track"`
	Lap              int     `json:"lap"`
	PercentPerSecond float64 `json:"percent_per_second"`
	EstimatedLapTime float64 `json:"estimate_lap_time"`
}

// FeatureVector is the input of the predictor.
// Layout: speed, throttle, brake, rpm, drs flag, gear, subdivision slots
type FeatureVector []float64

const (
	FeatSpeed = iota
	FeatThrottle
	FeatBrake
	FeatRPM
	FeatDRS
	FeatGear
	FeatSubdivisionStart
)

//nolint:tagliatelle // json
type Advisory struct {
	PredictedPercentPerSecond float64       `json:"predicted_percent_per_second"`
	SuggestedPercentPerSecond float64       `json:"suggested_percent_per_second"`
	Suggested                 FeatureVector `json:"suggested"`
	SpeedDelta                float64       `json:"speed_delta"`
	ThrottleDelta             float64       `json:"throttle_delta"`
	BrakeDelta                float64       `json:"brake_delta"`
}

// Emission is the result of a successful replay step
type Emission struct {
	Index    int
	Total    int
	Sample   DerivedSample
	Info     map[string]any
	Advisory omit.Val[Advisory]
}

//nolint:tagliatelle // json
type emissionJSON struct {
	DerivedSample
	Index    int            `json:"index"`
	Total    int            `json:"total"`
	Info     map[string]any `json:"info,omitempty"`
	Advisory *Advisory      `json:"advisory,omitempty"`
}

// ToJSONValue returns the wire representation of the emission.
func (e *Emission) ToJSONValue() any {
	return emissionJSON{
		DerivedSample: e.Sample,
		Index:         e.Index,
		Total:         e.Total,
		Info:          e.Info,
		Advisory:      e.Advisory.Ptr(),
	}
}
