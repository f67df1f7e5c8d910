//go:build !linux

package memlock

func lockAll() error   { return ErrUnsupported }
func unlockAll() error { return ErrUnsupported }
