//go:build linux

package threads

import "golang.org/x/sys/unix"

func currentTID() int { return unix.Gettid() }
