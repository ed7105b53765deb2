package manager

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"unipkg/internal/config"
	"unipkg/pkg/manager/detector"
)

// AURAlias expands, in a preference list, to the configured AUR helper order.
const AURAlias = "aur"

// Detection is the memoized outcome of probing the host.
// It is read-only once published by the Registry.
type Detection struct {
	// Available lists usable backend names in priority order.
	Available []string
	// Probed lists every backend name that was checked, in probe order.
	Probed []string
	// System describes the host distribution.
	System *detector.SystemInfo
}

// Has reports whether the named backend was detected.
func (d *Detection) Has(name string) bool {
	for _, n := range d.Available {
		if n == name {
			return true
		}
	}
	return false
}

// Registry holds every known backend and selects one for callers.
type Registry struct {
	managers    map[string]Manager
	priority    []string
	aurPriority []string
	lookPath    func(string) (string, error)
	sysInfo     func() *detector.SystemInfo

	mu        sync.RWMutex
	detection *Detection
}

// NewRegistry creates a new package manager registry.
func NewRegistry(cfg *config.Config) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Registry{
		managers:    make(map[string]Manager),
		priority:    append([]string(nil), cfg.General.BackendPriority...),
		aurPriority: append([]string(nil), cfg.General.AURPriority...),
		lookPath:    exec.LookPath,
		sysInfo:     detector.Detect,
	}
}

// SetLookPath replaces the executable probe. It invalidates any cached detection.
func (r *Registry) SetLookPath(fn func(string) (string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookPath = fn
	r.detection = nil
}

// SetSystemInfo replaces the host information probe.
func (r *Registry) SetSystemInfo(fn func() *detector.SystemInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sysInfo = fn
	r.detection = nil
}

// Register adds a manager to the registry. It invalidates any cached detection.
func (r *Registry) Register(mgr Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[mgr.Name()] = mgr
	r.detection = nil
}

// Get returns a specific manager by name, whether or not it is available.
func (r *Registry) Get(name string) (Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mgr, ok := r.managers[name]
	return mgr, ok
}

// All returns all registered managers in probe order.
func (r *Registry) All() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := r.probeOrder()
	managers := make([]Manager, 0, len(order))
	for _, name := range order {
		managers = append(managers, r.managers[name])
	}
	return managers
}

// Detect probes the host once and returns the memoized result on later calls.
func (r *Registry) Detect() *Detection {
	r.mu.RLock()
	d := r.detection
	r.mu.RUnlock()
	if d != nil {
		return d
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detection == nil {
		r.detection = r.probe()
	}
	return r.detection
}

// Redetect discards the cached detection and probes again.
func (r *Registry) Redetect() *Detection {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detection = r.probe()
	return r.detection
}

// Invalidate discards the cached detection; the next Detect probes again.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detection = nil
}

// Available returns all detected managers in priority order.
func (r *Registry) Available() []Manager {
	d := r.Detect()

	r.mu.RLock()
	defer r.mu.RUnlock()
	managers := make([]Manager, 0, len(d.Available))
	for _, name := range d.Available {
		managers = append(managers, r.managers[name])
	}
	return managers
}

// SystemInfo returns the detected system information.
func (r *Registry) SystemInfo() *detector.SystemInfo {
	return r.Detect().System
}

// Create returns the backend to use. With an empty preference list the
// first available backend in priority order is chosen; otherwise the first
// available backend of the preference list. "aur" in the list expands to the
// configured AUR helper order.
func (r *Registry) Create(preferred []string) (Manager, error) {
	d := r.Detect()

	candidates := d.Available
	tried := d.Probed
	if len(preferred) > 0 {
		candidates = r.expand(preferred)
		tried = candidates
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range candidates {
		if !d.Has(name) {
			continue
		}
		if mgr, ok := r.managers[name]; ok {
			return mgr, nil
		}
	}

	return nil, &BackendNotFoundError{Candidates: tried}
}

// probe must be called with r.mu held for writing.
func (r *Registry) probe() *Detection {
	d := &Detection{}
	if r.sysInfo != nil {
		d.System = r.sysInfo()
	}

	for _, name := range r.probeOrder() {
		d.Probed = append(d.Probed, name)
		if _, err := r.lookPath(r.managers[name].Binary()); err == nil {
			d.Available = append(d.Available, name)
		}
	}
	return d
}

// probeOrder lists registered names: configured priority first, then the
// remaining names sorted alphabetically.
func (r *Registry) probeOrder() []string {
	seen := make(map[string]bool, len(r.managers))
	var order []string
	for _, name := range r.priority {
		if _, ok := r.managers[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range r.managers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func (r *Registry) expand(preferred []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}

	for _, p := range preferred {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == AURAlias {
			for _, h := range r.aurPriority {
				add(h)
			}
			continue
		}
		add(p)
	}
	return out
}

// String summarizes the detection for logs.
func (d *Detection) String() string {
	distro := "unknown"
	if d.System != nil && d.System.Distribution != "" {
		distro = d.System.Distribution
	}
	return fmt.Sprintf("distro=%s available=[%s]", distro, strings.Join(d.Available, ","))
}
