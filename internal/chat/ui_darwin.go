//go:build darwin

package chat

import (
	"syscall"
	"time"
)

// stdinHasData reports whether stdin has bytes ready within the timeout,
// using the select() syscall. Darwin variant: Timeval.Usec is int32 and
// Select returns only an error.
func stdinHasData(fd int, timeout time.Duration) bool {
	var readFds syscall.FdSet
	readFds.Bits[fd/64] |= 1 << (uint(fd) % 64)

	tv := syscall.Timeval{
		Sec:  int64(timeout / time.Second),
		Usec: int32((timeout % time.Second) / time.Microsecond),
	}

	err := syscall.Select(fd+1, &readFds, nil, nil, &tv)
	if err != nil {
		return false
	}
	// fd still set means data is waiting
	return (readFds.Bits[fd/64] & (1 << (uint(fd) % 64))) != 0
}
