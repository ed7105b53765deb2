package executor

import (
	"os"
	"os/exec"
)

// IsRoot returns true if the current process is running as root.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// HasSudo returns true if sudo is available on the system.
func HasSudo() bool {
	_, err := exec.LookPath("sudo")
	return err == nil
}

// CanElevate returns true if the process can elevate privileges.
func CanElevate() bool {
	return IsRoot() || HasSudo()
}

// elevate prefixes argv with a non-interactive sudo when the command needs
// root and we are not root. Without sudo the command runs as-is and the
// backend reports its own permission error.
func (e *Executor) elevate(name string, args []string) (string, []string) {
	if e.isRoot() || !e.hasSudo() {
		return name, args
	}
	sudoArgs := make([]string, 0, len(args)+2)
	sudoArgs = append(sudoArgs, "-n", name)
	sudoArgs = append(sudoArgs, args...)
	return "sudo", sudoArgs
}
