// Package quota tracks per-owner storage usage against a limit.
package quota

import (
	"errors"
	"fmt"
)

// Usage is one owner's storage counters.
type Usage struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}

// Available returns the remaining headroom, floored at zero.
func (u Usage) Available() int64 {
	if u.UsedBytes >= u.LimitBytes {
		return 0
	}
	return u.LimitBytes - u.UsedBytes
}

// ErrOwnerNotFound indicates there is no quota row for the owner.
var ErrOwnerNotFound = errors.New("owner not found")

// AdmissionError reports a rejected admission check with the byte counts the
// caller needs to explain the rejection.
type AdmissionError struct {
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("insufficient storage: required %d bytes, available %d bytes",
		e.RequiredBytes, e.AvailableBytes)
}

// IsAdmissionRejected reports whether err is an admission rejection.
func IsAdmissionRejected(err error) bool {
	var admission *AdmissionError
	return errors.As(err, &admission)
}
