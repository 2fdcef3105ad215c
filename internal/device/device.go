// Package device selects the compute device the inference engine runs on.
package device

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Device is a compute device understood by the inference engine
type Device string

const (
	// CUDA is the accelerator device
	CUDA Device = "cuda"
	// CPU is the general-purpose processor
	CPU Device = "cpu"
	// Auto asks for detection at session construction
	Auto Device = ""
)

// Parse converts a user supplied device name. "auto" and "" map to Auto.
func Parse(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "cuda", "gpu":
		return CUDA, nil
	case "cpu":
		return CPU, nil
	default:
		return Auto, fmt.Errorf("unknown device %q (expected cuda, cpu or auto)", s)
	}
}

// String returns the engine-facing device name
func (d Device) String() string {
	if d == Auto {
		return "auto"
	}
	return string(d)
}

// Detector reports whether an accelerator is usable
type Detector func() bool

// Resolve returns d unchanged unless it is Auto, in which case detect decides
func Resolve(d Device, detect Detector) Device {
	if d != Auto {
		return d
	}
	if detect == nil {
		detect = AcceleratorAvailable
	}
	if detect() {
		return CUDA
	}
	return CPU
}

// AcceleratorAvailable checks for an NVIDIA driver. CUDA_VISIBLE_DEVICES set
// to an empty string or -1 hides all devices, as it does for CUDA itself.
func AcceleratorAvailable() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		if v = strings.TrimSpace(v); v == "" || v == "-1" {
			return false
		}
	}

	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}

	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false
	}
	out, err := exec.Command(path, "-L").Output()
	return err == nil && strings.Contains(string(out), "GPU")
}
