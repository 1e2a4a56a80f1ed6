// Package platform probes the host once at startup. The resulting Info value
// is passed explicitly into the components that need it; nothing in here is
// cached globally.
package platform

import (
	"os"
	"runtime"
	"strings"

	"gocv.io/x/gocv"
)

// Info describes the host environment relevant to capture and display.
type Info struct {
	System   string
	Arch     string
	IsWSL    bool
	IsDocker bool
	HasGUI   bool
}

// CameraBackend pairs a human name with the OpenCV capture API id tried for
// camera devices, in priority order for the platform.
type CameraBackend struct {
	Name string
	API  gocv.VideoCaptureAPI
}

// Detect probes the current host.
func Detect() Info {
	info := Info{
		System: runtime.GOOS,
		Arch:   runtime.GOARCH,
	}
	if info.System == "linux" {
		if data, err := os.ReadFile("/proc/version"); err == nil {
			v := strings.ToLower(string(data))
			info.IsWSL = strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
		}
		if _, err := os.Stat("/.dockerenv"); err == nil {
			info.IsDocker = true
		} else if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
			info.IsDocker = strings.Contains(string(data), "docker")
		}
	}
	info.HasGUI = detectGUI(info)
	return info
}

func detectGUI(info Info) bool {
	switch info.System {
	case "windows", "darwin":
		return !info.IsDocker
	case "linux":
		if info.IsDocker {
			return os.Getenv("DISPLAY") != ""
		}
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
			return true
		}
	}
	return false
}

// CameraBackends returns the capture APIs to try for this platform, most
// specific first. The generic API is always last so a device that only
// answers the default probe is still found.
func (i Info) CameraBackends() []CameraBackend {
	switch i.System {
	case "linux":
		return []CameraBackend{
			{"V4L2", gocv.VideoCaptureV4L2},
			{"GStreamer", gocv.VideoCaptureGstreamer},
			{"Default", gocv.VideoCaptureAny},
		}
	case "windows":
		return []CameraBackend{
			{"DirectShow", gocv.VideoCaptureDshow},
			{"Media Foundation", gocv.VideoCaptureMSMF},
			{"Default", gocv.VideoCaptureAny},
		}
	case "darwin":
		return []CameraBackend{
			{"AVFoundation", gocv.VideoCaptureAVFoundation},
			{"Default", gocv.VideoCaptureAny},
		}
	}
	return []CameraBackend{{"Default", gocv.VideoCaptureAny}}
}
