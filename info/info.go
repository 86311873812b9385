// Package info recognizes and strips the "+CMD: " prefix AT info lines use
// for command responses - e.g. "+CREG: 0,1" or "+CGATT: 1" - the same
// colon-delimited convention the teacher's gsm/at stack used for SMS status
// lines, reused here for network-registration and PDP-context fields.
package info

import "strings"

// HasPrefix returns true if line is an info line for cmd, i.e. begins with
// "cmd:".
func HasPrefix(line, cmd string) bool {
	return strings.HasPrefix(line, cmd+":")
}

// TrimPrefix removes the "cmd:" prefix, if any, and any intervening space
// from the info line, leaving the comma-separated field list.
func TrimPrefix(line, cmd string) string {
	return strings.TrimLeft(strings.TrimPrefix(line, cmd+":"), " ")
}
