// Package stringutil holds small string helpers shared by the command
// and error paths.
package stringutil

import "strings"

const truncatedSuffix = "... (truncated)"

// TruncateOutput converts tool output to a string, cutting it at maxLen
// bytes. Tool output is embedded in error messages and can be large
// (mkfs prints a progress table), so callers bound it.
func TruncateOutput(out []byte, maxLen int) string {
	if len(out) <= maxLen {
		return string(out)
	}
	if maxLen < 0 {
		maxLen = 0
	}
	return string(out[:maxLen]) + truncatedSuffix
}

// ShellQuote renders arg so that the echoed command line can be pasted
// back into a POSIX shell.
func ShellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, needsQuote) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}
