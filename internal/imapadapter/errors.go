package imapadapter

import "strings"

// IsConnectionError reports whether err indicates a dead or broken
// connection, as opposed to a protocol-level rejection. Callers use this to
// decide whether to retry with a fresh Session or surface the error as-is.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{
		"use of closed network connection",
		"connection reset",
		"broken pipe",
		"EOF",
		"i/o timeout",
		"connection refused",
		"no such host",
		"network is unreachable",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
