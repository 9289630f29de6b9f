package kernel

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version information for the kernel.
const (
	// Version is the current version of the kernel package.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides information about the kernel build.
type Info struct {
	// Version is the canonical semantic version, e.g. "v0.1.0".
	Version string

	// Scheduling describes the scheduling model.
	Scheduling string

	// Checker names the happens-before algorithm used by RaceDetection.
	Checker string
}

// GetInfo returns information about the kernel.
//
// Example:
//
//	info := kernel.GetInfo()
//	fmt.Printf("kernsync %s (%s)\n", info.Version, info.Scheduling)
func GetInfo() Info {
	return Info{
		Version:    semver.Canonical("v" + Version),
		Scheduling: "uniprocessor, cooperative with optional seeded timer preemption",
		Checker:    "FastTrack (PLDI 2009)",
	}
}

// CheckCompatible reports whether this kernel satisfies a program that was
// written against version required: the major versions must match and
// required must not be newer than Version. The "v" prefix is optional.
func CheckCompatible(required string) error {
	if required != "" && required[0] != 'v' {
		required = "v" + required
	}
	if !semver.IsValid(required) {
		return fmt.Errorf("invalid version %q", required)
	}
	current := GetInfo().Version
	if semver.Major(required) != semver.Major(current) {
		return fmt.Errorf("version %s is incompatible with kernel %s (major version differs)", required, current)
	}
	if semver.Compare(required, current) > 0 {
		return fmt.Errorf("version %s is newer than kernel %s", required, current)
	}
	return nil
}
