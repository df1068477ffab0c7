package kernel

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Limits sizes the tables and bounds this module polices, matching the
// constants in original_source's kern/include/limits.h-derived headers
// (OPEN_MAX, PATH_MAX, ARG_MAX, PID_MIN/PID_MAX).
type Limits struct {
	OpenMax int   `yaml:"open_max"`
	PathMax int   `yaml:"path_max"`
	ArgMax  int   `yaml:"arg_max"`
	PidMin  int64 `yaml:"pid_min"`
	PidMax  int64 `yaml:"pid_max"`

	// UserCeiling is the highest address this module treats as
	// user-space; pointers at or above it fail copy-in/out with EFAULT.
	// There is no real address space in this simulator, so it only
	// matters for the synthetic checks exec performs on caller-supplied
	// pointers in tests.
	UserCeiling uintptr `yaml:"user_ceiling"`
}

// DefaultLimits returns the sizing original_source and spec.md assume.
func DefaultLimits() Limits {
	return Limits{
		OpenMax:     64,
		PathMax:     1024,
		ArgMax:      64 * 1024,
		PidMin:      2,
		PidMax:      256,
		UserCeiling: 0x7FFFFFFF,
	}
}

// LoadLimits reads a YAML limits file, starting from DefaultLimits so a
// partial file only overrides what it names.
func LoadLimits(path string) (Limits, error) {
	l := DefaultLimits()
	b, err := os.ReadFile(path)
	if err != nil {
		return Limits{}, err
	}
	if err := yaml.Unmarshal(b, &l); err != nil {
		return Limits{}, err
	}
	return l, nil
}
