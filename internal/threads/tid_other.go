//go:build !linux

package threads

import "os"

// Without per-thread kernel ids, fall back to the process id so the
// registry stays usable for development on non-Linux hosts.
func currentTID() int { return os.Getpid() }
