package dto

import "time"

// LinkStats mirrors the shape of the original firmware's WiFi
// uptime/downtime counters. Bring-up of the station/AP link itself is out
// of scope here; a pinned LinkMonitor interface supplies these numbers from
// whatever real network stack a deployment wires in.
type LinkStats struct {
	UptimeSec       int64     `json:"uptimeSec"`
	DowntimeSec     int64     `json:"downtimeSec"`
	DisconnectCount int       `json:"disconnectCount"`
	LastChange      time.Time `json:"lastChange"`
	Connected       bool      `json:"connected"`
}

// PIDParameters is the debug introspection view of the adaptive PID
// controller's currently-effective gains, surfaced at GET /api/v1/process/pid.
type PIDParameters struct {
	Kp             float64 `json:"kp"`
	Ki             float64 `json:"ki"`
	Kd             float64 `json:"kd"`
	BaseKp         float64 `json:"baseKp"`
	BaseKi         float64 `json:"baseKi"`
	BaseKd         float64 `json:"baseKd"`
	LastOutput     float64 `json:"lastOutput"`
	LastError      float64 `json:"lastError"`
	ErrorVariance  float64 `json:"errorVariance"`
	ErrorMean      float64 `json:"errorMean"`
	AdaptiveRegime string  `json:"adaptiveRegime" example:"base"`
}
