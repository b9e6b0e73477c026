package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	berrors "github.com/conduit-lang/waypoint/internal/errors"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Details      []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message block:
//
//	❌ BUILD FAILED: 2 errors
//	   B006 resolve: spec=specs[0] namespace=widgets ...
//
//	   → List routes: waypoint routes
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	}
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}
	for _, d := range opts.Details {
		bodyColor.Fprintf(&b, "   %s\n", d)
	}
	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// BuildFailure renders a failed routing table build, one line per build
// error when err carries them
func BuildFailure(err error, noColor bool) string {
	var details []string
	var list berrors.List
	var single *berrors.BuildError
	switch {
	case errors.As(err, &list):
		for _, be := range list {
			details = append(details, be.Error())
		}
	case errors.As(err, &single):
		details = []string{single.Error()}
	default:
		details = []string{err.Error()}
	}

	problem := "1 error"
	if len(details) != 1 {
		problem = fmt.Sprintf("%d errors", len(details))
	}
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "build failed",
		Problem: problem,
		Details: details,
		HelpCommands: []string{
			"Inspect the compiled routes: waypoint routes",
			"Get help: waypoint --help",
		},
		NoColor: noColor,
	})
}

// ConfigError creates a standardized configuration error
func ConfigError(err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "configuration error",
		Problem: err.Error(),
		HelpCommands: []string{
			"View config: cat waypoint.yaml",
			"Get help: waypoint --help",
		},
		NoColor: noColor,
	})
}
