package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// User-facing output. Info and success go to Stdout, warnings and errors to
// Stderr. Both are variables so commands and tests can redirect them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...any) {
	fmt.Fprintln(Stdout, infoStyle.Render("ℹ")+" "+fmt.Sprintf(format, args...))
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...any) {
	fmt.Fprintln(Stdout, successStyle.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...any) {
	fmt.Fprintln(Stderr, warningStyle.Render("⚠")+" "+fmt.Sprintf(format, args...))
}

// UserError prints an error message to stderr.
func UserError(format string, args ...any) {
	fmt.Fprintln(Stderr, errorStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// RedirectUserOutput points user output at the given writers and returns a
// function restoring the previous ones.
func RedirectUserOutput(stdout, stderr io.Writer) (restore func()) {
	prevOut, prevErr := Stdout, Stderr
	Stdout, Stderr = stdout, stderr
	return func() {
		Stdout, Stderr = prevOut, prevErr
	}
}
