package application

import (
	"camera-color-judge/internal/domain"
)

// CameraManager opens capture devices
type CameraManager interface {
	// ListDevices returns the available capture devices
	ListDevices() ([]domain.VideoDevice, error)

	// OpenCamera opens the device selected by config
	OpenCamera(config domain.DeviceConfig) (domain.CaptureHandle, error)
}

// ResultSink receives every periodic classification result.
// Publish must not block the sampler.
type ResultSink interface {
	Publish(result domain.ClassificationResult)
}

// StateObserver is notified after every connection state transition
type StateObserver interface {
	StateChanged(state domain.ConnectionState, session string)
}

// Logger is the logging interface; args are key/value pairs
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}
