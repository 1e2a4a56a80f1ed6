package iface

import "fmt"

// Error taxonomy for the tracking pipeline. Each type wraps an underlying
// cause so callers can pick handling with errors.As.

type FrameSourceError struct {
	Op  string
	Err error
}

func (e *FrameSourceError) Error() string {
	return fmt.Sprintf("frame source: %s: %v", e.Op, e.Err)
}

func (e *FrameSourceError) Unwrap() error { return e.Err }

type ModelLoadError struct {
	Backend string
	Err     error
}

func (e *ModelLoadError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("model load: %v", e.Err)
	}
	return fmt.Sprintf("model load (%s): %v", e.Backend, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

type DetectionError struct {
	Backend string
	Err     error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection (%s): %v", e.Backend, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

type DisplayError struct {
	Op  string
	Err error
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("display: %s: %v", e.Op, e.Err)
}

func (e *DisplayError) Unwrap() error { return e.Err }
