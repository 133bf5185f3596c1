package dto

import "time"

// AlertKind names one of the error kinds in the controller's error-handling
// design: sensor, overheat, door, heater-fault, profile, flash, mutex,
// task-hang, web-auth, or upload failures.
type AlertKind string

const (
	AlertChamberSensorFail AlertKind = "ChamberSensorFail"
	AlertMeatSensorFail    AlertKind = "MeatSensorFail"
	AlertOverheat          AlertKind = "Overheat"
	AlertDoor              AlertKind = "Door"
	AlertHeaterFault       AlertKind = "HeaterFault"
	AlertProfileInvalid    AlertKind = "ProfileInvalid"
	AlertFlashInitFail     AlertKind = "FlashInitFail"
	AlertFlashWriteFail    AlertKind = "FlashWriteFail"
	AlertMutexTimeout      AlertKind = "MutexTimeout"
	AlertTaskHang          AlertKind = "TaskHang"
	AlertWebAuthFail       AlertKind = "WebAuthFail"
	AlertUploadError       AlertKind = "UploadError"
)

// Alert is a single fault notification, published to TopicAlert and kept in
// a bounded ring for the diagnostics UI screen.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Fatal     bool      `json:"fatal"`
	Timestamp time.Time `json:"timestamp"`
}
