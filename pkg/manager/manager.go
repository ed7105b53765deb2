package manager

import "context"

// Manager defines the interface that all package managers must implement.
// Every backend returns the same result shape and error taxonomy.
type Manager interface {
	// Name returns the short identifier for this manager (e.g., "apt", "pacman").
	Name() string

	// DisplayName returns a human-readable name (e.g., "APT (Debian/Ubuntu)").
	DisplayName() string

	// Type returns the category of this manager (native, aur).
	Type() ManagerType

	// Binary returns the executable probed during detection.
	Binary() string

	// IsAvailable returns true if this package manager is installed and usable.
	IsAvailable() bool

	// NeedsSudo returns true if this manager requires root privileges for mutations.
	NeedsSudo() bool

	// Supports reports whether the operation is implemented by this backend.
	// Unsupported operations fail with UnsupportedOperationError before any
	// subprocess is started.
	Supports(op Operation) bool

	// Install installs one or more packages.
	Install(ctx context.Context, packages []PackageSpec, opts Options) (*OperationResult, error)

	// Remove removes one or more packages.
	Remove(ctx context.Context, packages []PackageSpec, opts Options) (*OperationResult, error)

	// Update upgrades the given installed packages.
	Update(ctx context.Context, packages []PackageSpec, opts Options) (*OperationResult, error)

	// Query reports installed state for the given packages, or lists every
	// installed package when none are given.
	Query(ctx context.Context, packages []PackageSpec, opts Options) (*OperationResult, error)

	// IsInstalled checks if a specific package is installed.
	IsInstalled(ctx context.Context, name string) (bool, error)
}

// LockScoped is implemented by backends whose mutations take a system lock
// shared with other backends.
type LockScoped interface {
	LockDomain() string
}

// LockDomain names the lock m's mutations contend on. Backends that do not
// implement LockScoped get one of their own.
func LockDomain(m Manager) string {
	if l, ok := m.(LockScoped); ok {
		return l.LockDomain()
	}
	return m.Name()
}
