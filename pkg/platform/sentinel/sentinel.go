// Package sentinel holds infrastructure-level facts that stores report and
// services translate into coded domain errors:
//   - ErrNotFound: the row does not exist (or lives in another tenant)
//   - ErrAlreadyUsed: a uniqueness constraint rejected the write
//   - ErrUnavailable: the backing system could not be reached in time
//   - ErrLockNotAcquired: a keyed lock stayed held past the caller's deadline
package sentinel

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyUsed     = errors.New("already used")
	ErrUnavailable     = errors.New("unavailable")
	ErrLockNotAcquired = errors.New("lock not acquired")
)
