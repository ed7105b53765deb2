// Package history journals unipkg operations with BoltDB.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"unipkg/pkg/manager"
)

// Entry represents a single operation in the history.
type Entry struct {
	ID        string                   `json:"id"`
	TaskID    string                   `json:"task_id,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
	Operation manager.Operation        `json:"operation"`
	Backend   string                   `json:"backend"`
	Packages  []string                 `json:"packages"`
	Outcomes  []manager.PackageOutcome `json:"outcomes,omitempty"`
	Success   bool                     `json:"success"`
	ExitCode  int                      `json:"exit_code"`
	Duration  time.Duration            `json:"duration"`
	Error     string                   `json:"error,omitempty"`
}

// NewEntry creates a new history entry.
func NewEntry(op manager.Operation, backend string, packages []string) *Entry {
	return &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Operation: op,
		Backend:   backend,
		Packages:  packages,
	}
}

// Complete copies the outcome of an operation into the entry.
func (e *Entry) Complete(res *manager.OperationResult, err error) {
	if err != nil {
		e.Success = false
		e.Error = err.Error()
		return
	}
	if res == nil {
		return
	}
	e.Success = res.Success
	e.Backend = res.Backend
	e.Outcomes = res.Outcomes
	e.ExitCode = res.ExitCode
	e.Duration = res.Duration
}

// Result rebuilds the operation result recorded in the entry.
func (e *Entry) Result() *manager.OperationResult {
	return manager.NewResult(e.Operation, e.Backend, e.Outcomes, e.ExitCode, e.Duration)
}

// FormatTime returns a human-readable timestamp.
func (e *Entry) FormatTime() string {
	return e.Timestamp.Format("2006-01-02 15:04:05")
}

// ShortID returns the first segment of the ID.
func (e *Entry) ShortID() string {
	if i := strings.IndexByte(e.ID, '-'); i > 0 {
		return e.ID[:i]
	}
	return e.ID
}

// Summary returns a brief summary of the operation.
func (e *Entry) Summary() string {
	status := "success"
	if !e.Success {
		status = "failed"
	}

	switch len(e.Packages) {
	case 0:
		return fmt.Sprintf("%s %s [%s] (%s)", e.FormatTime(), e.Operation, e.Backend, status)
	case 1:
		return fmt.Sprintf("%s %s %s [%s] (%s)", e.FormatTime(), e.Operation, e.Packages[0], e.Backend, status)
	}
	return fmt.Sprintf("%s %s %s +%d [%s] (%s)", e.FormatTime(), e.Operation, e.Packages[0], len(e.Packages)-1, e.Backend, status)
}
