// Package color styles terminal output for the local REPL.
package color

import (
	"github.com/fatih/color"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	statusColor  = color.New(color.FgHiBlack)
	resultColor  = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func Prompt(s string) string {
	return promptColor.Sprint(s)
}

// Status is used for pipeline progress lines.
func Status(s string) string {
	return statusColor.Sprint(s)
}

func Result(s string) string {
	return resultColor.Sprint(s)
}

func Warning(s string) string {
	return warningColor.Sprint(s)
}

func Error(s string) string {
	return errorColor.Sprint(s)
}

// Disable turns styling off, e.g. when stdout is not a terminal.
func Disable() {
	color.NoColor = true
}
