package engine

import (
	"fmt"
	"os"
	"time"

	iface "VisionTracker/interface"

	"github.com/go-resty/resty/v2"
)

// The registry is a static table: descriptors plus constructors, registered
// here and read-only afterwards. Requirement checks are plain probes run at
// call time instead of import tricks.

type constructor func(cfg iface.BackendConfig) iface.Backend

type registration struct {
	desc iface.BackendDescriptor
	make constructor
}

// registrations is ordered: auto-detect picks the first entry whose
// requirements are all satisfied, so real backends come before mock.
var registrations = []registration{
	{
		desc: iface.BackendDescriptor{
			Name:        "yolo",
			Description: "YOLO-family ONNX model via OpenCV DNN",
			Tags:        []string{"fast", "local"},
			Requires:    []string{"model-file"},
		},
		make: func(cfg iface.BackendConfig) iface.Backend { return newDNNBackend(cfg) },
	},
	{
		desc: iface.BackendDescriptor{
			Name:        "remote",
			Description: "external inference service over HTTP",
			Tags:        []string{"high-accuracy", "network"},
			Requires:    []string{"endpoint"},
		},
		make: func(cfg iface.BackendConfig) iface.Backend { return newRemoteBackend(cfg) },
	},
	{
		desc: iface.BackendDescriptor{
			Name:        "mock",
			Description: "deterministic synthetic detections",
			Tags:        []string{"fast", "testing"},
			Requires:    nil,
		},
		make: func(cfg iface.BackendConfig) iface.Backend { return newMockBackend(cfg) },
	},
}

// ListBackends returns the descriptors in registration (priority) order.
func ListBackends() []iface.BackendDescriptor {
	out := make([]iface.BackendDescriptor, 0, len(registrations))
	for _, r := range registrations {
		out = append(out, r.desc)
	}
	return out
}

// BackendMetadata looks up one descriptor by name.
func BackendMetadata(name string) (iface.BackendDescriptor, bool) {
	for _, r := range registrations {
		if r.desc.Name == name {
			return r.desc, true
		}
	}
	return iface.BackendDescriptor{}, false
}

// MissingRequirements returns the requirement names that cannot be satisfied
// in the current environment for the given descriptor. Unknown requirement
// names are reported missing rather than silently passed.
func MissingRequirements(desc iface.BackendDescriptor, cfg iface.BackendConfig, modelPath string) []string {
	var missing []string
	for _, req := range desc.Requires {
		ok := false
		switch req {
		case "model-file":
			ok = probeModelFile(modelPath)
		case "endpoint":
			ok = probeEndpoint(cfg.Endpoint)
		}
		if !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

func probeModelFile(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func probeEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	client := resty.New().SetTimeout(2 * time.Second)
	resp, err := client.R().Get(endpoint + "/health")
	return err == nil && resp.IsSuccess()
}

// AutoDetect returns the first registered backend whose requirements are all
// satisfied, in priority order.
func AutoDetect(cfg iface.BackendConfig, modelPath string) (string, error) {
	for _, r := range registrations {
		if len(MissingRequirements(r.desc, cfg, modelPath)) == 0 {
			return r.desc.Name, nil
		}
	}
	return "", &iface.ModelLoadError{Err: fmt.Errorf("no backend available")}
}

// CreateBackend instantiates the named backend. The instance is constructed
// but not yet loaded.
func CreateBackend(name string, cfg iface.BackendConfig) (iface.Backend, error) {
	for _, r := range registrations {
		if r.desc.Name == name {
			return r.make(cfg), nil
		}
	}
	return nil, &iface.ModelLoadError{Backend: name, Err: fmt.Errorf("unknown backend")}
}
