// Package detector reads host distribution information.
package detector

import (
	"runtime"
)

// SystemInfo contains information about the detected system.
type SystemInfo struct {
	OS           string
	Arch         string
	Distribution string   // Linux distribution ID (e.g., "ubuntu", "arch")
	DistroFamily []string // Related distributions (from ID_LIKE)
	PrettyName   string   // Human-readable name
	VersionID    string   // Distribution version
}

// Detect detects the current system's OS and distribution.
// Distribution fields stay empty on non-Linux hosts.
func Detect() *SystemInfo {
	info := &SystemInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if runtime.GOOS != "linux" {
		return info
	}

	linux := DetectLinux()
	info.Distribution = linux.ID
	info.DistroFamily = linux.IDLike
	info.PrettyName = linux.PrettyName
	info.VersionID = linux.VersionID
	return info
}

// MatchesDistro checks if the system matches any of the given distribution identifiers.
// It checks both the direct distribution ID and the ID_LIKE family.
func (s *SystemInfo) MatchesDistro(distros ...string) bool {
	for _, d := range distros {
		if s.Distribution == d {
			return true
		}
		for _, family := range s.DistroFamily {
			if family == d {
				return true
			}
		}
	}
	return false
}

// NativeManager returns the system package manager expected for this host,
// or "" when the distribution is not one of the supported families.
func (s *SystemInfo) NativeManager() string {
	return GetNativeManagerForFamily(s.Distribution, s.DistroFamily)
}
