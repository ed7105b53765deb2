package detector

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// osReleasePaths are read in order; the first readable file wins.
var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// LinuxInfo contains information parsed from os-release.
type LinuxInfo struct {
	ID         string   // Distribution ID (e.g., "ubuntu", "arch", "fedora")
	IDLike     []string // Related distributions
	VersionID  string   // Version number (e.g., "22.04", "39")
	PrettyName string   // Human-readable name
	Name       string   // Distribution name
}

// DetectLinux detects the Linux distribution from os-release, falling back
// to distribution-specific release files.
func DetectLinux() *LinuxInfo {
	for _, path := range osReleasePaths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		info, err := ParseOSRelease(f)
		f.Close()
		if err == nil && info.ID != "" {
			return info
		}
	}

	if info := detectFromReleaseFiles(); info != nil {
		return info
	}

	return &LinuxInfo{ID: "unknown", PrettyName: "Unknown Linux"}
}

// ParseOSRelease parses the KEY=value format of os-release(5).
func ParseOSRelease(r io.Reader) (*LinuxInfo, error) {
	info := &LinuxInfo{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		switch key {
		case "ID":
			info.ID = value
		case "ID_LIKE":
			info.IDLike = strings.Fields(value)
		case "VERSION_ID":
			info.VersionID = value
		case "PRETTY_NAME":
			info.PrettyName = value
		case "NAME":
			info.Name = value
		}
	}

	return info, scanner.Err()
}

func detectFromReleaseFiles() *LinuxInfo {
	releaseFiles := []struct {
		path   string
		distro string
		pretty string
	}{
		{"/etc/arch-release", "arch", "Arch Linux"},
		{"/etc/debian_version", "debian", "Debian"},
		{"/etc/fedora-release", "fedora", "Fedora"},
		{"/etc/redhat-release", "rhel", "Red Hat Enterprise Linux"},
	}

	for _, rf := range releaseFiles {
		if _, err := os.Stat(rf.path); err == nil {
			return &LinuxInfo{ID: rf.distro, PrettyName: rf.pretty}
		}
	}
	return nil
}

// distroManagerMap maps distribution IDs to their native package managers.
var distroManagerMap = map[string]string{
	// Debian family
	"debian":     "apt",
	"ubuntu":     "apt",
	"linuxmint":  "apt",
	"pop":        "apt",
	"elementary": "apt",
	"kali":       "apt",
	"raspbian":   "apt",

	// Red Hat family
	"fedora":    "dnf",
	"rhel":      "dnf",
	"centos":    "dnf",
	"rocky":     "dnf",
	"almalinux": "dnf",

	// Arch family
	"arch":        "pacman",
	"manjaro":     "pacman",
	"endeavouros": "pacman",
	"garuda":      "pacman",
	"artix":       "pacman",
	"cachyos":     "pacman",
}

// GetNativeManager returns the native package manager for a distribution ID.
func GetNativeManager(distroID string) string {
	return distroManagerMap[distroID]
}

// GetNativeManagerForFamily checks the distribution ID and its family for a native manager.
func GetNativeManagerForFamily(distroID string, idLike []string) string {
	if mgr := GetNativeManager(distroID); mgr != "" {
		return mgr
	}
	for _, family := range idLike {
		if mgr := GetNativeManager(family); mgr != "" {
			return mgr
		}
	}
	return ""
}
