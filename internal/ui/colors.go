// Package ui provides terminal output helpers for the unipkg CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"unipkg/pkg/manager"
)

var (
	// Colors for different message types
	Success = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow, color.Bold)
	Info    = color.New(color.FgCyan)
	Header  = color.New(color.FgMagenta, color.Bold)
	Muted   = color.New(color.FgHiBlack)

	PackageName = color.New(color.FgWhite, color.Bold)
	BackendName = color.New(color.FgCyan)
)

// UseColors represents whether colors should be used.
var UseColors = true

// UseUnicode represents whether unicode symbols should be used.
var UseUnicode = true

// Output is where messages are written. Tests replace it.
var Output io.Writer = os.Stdout

// Symbols for status indicators
var (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolInfo    = "→"
	SymbolSkipped = "○"
)

// Init initializes the UI settings based on configuration.
func Init(useColors, useUnicode bool) {
	UseColors = useColors
	UseUnicode = useUnicode

	if !useColors || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	if !useUnicode {
		SymbolSuccess = "[OK]"
		SymbolError = "[ERROR]"
		SymbolWarning = "[WARN]"
		SymbolInfo = "->"
		SymbolSkipped = "[ ]"
	}
}

// SuccessMsg prints a success message.
func SuccessMsg(format string, args ...interface{}) {
	Success.Fprintf(Output, SymbolSuccess+" "+format+"\n", args...)
}

// ErrorMsg prints an error message to stderr.
func ErrorMsg(format string, args ...interface{}) {
	Error.Fprintf(os.Stderr, SymbolError+" "+format+"\n", args...)
}

// WarningMsg prints a warning message.
func WarningMsg(format string, args ...interface{}) {
	Warning.Fprintf(Output, SymbolWarning+" "+format+"\n", args...)
}

// InfoMsg prints an info message.
func InfoMsg(format string, args ...interface{}) {
	Info.Fprintf(Output, SymbolInfo+" "+format+"\n", args...)
}

// HeaderMsg prints a header message.
func HeaderMsg(format string, args ...interface{}) {
	Header.Fprintf(Output, "\n"+format+"\n", args...)
}

// MutedMsg prints a muted (dim) message.
func MutedMsg(format string, args ...interface{}) {
	Muted.Fprintf(Output, format+"\n", args...)
}

// Println prints a plain line with formatting.
func Println(format string, args ...interface{}) {
	fmt.Fprintf(Output, format+"\n", args...)
}

// Bold returns a bold string.
func Bold(s string) string {
	return color.New(color.Bold).Sprint(s)
}

// StatusColor returns the color used to render a package status.
func StatusColor(op manager.Operation, s manager.Status) *color.Color {
	switch {
	case s == manager.StatusSkipped:
		return Muted
	case op.IsPositive(s):
		return Success
	case s == manager.StatusNotFound || s == manager.StatusPermissionDenied:
		return Warning
	default:
		return Error
	}
}

// StatusSymbol returns the indicator printed next to a package status.
func StatusSymbol(op manager.Operation, s manager.Status) string {
	switch {
	case s == manager.StatusSkipped:
		return SymbolSkipped
	case op.IsPositive(s):
		return SymbolSuccess
	case s == manager.StatusNotFound:
		return SymbolWarning
	default:
		return SymbolError
	}
}
