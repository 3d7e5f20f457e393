package files

import (
	"github.com/juju/errors"
)

// Error categories callers are expected to branch on. Check with errors.Is.
const (
	// ErrConfigSectionNotFound means the static storage configuration is
	// absent. Nothing storage related can work in that state.
	ErrConfigSectionNotFound = errors.ConstError("config section not found")

	// ErrProviderAccess means a provider link is missing or the actor may not
	// use it. It is distinct from a malformed id so callers can prompt for
	// re-authorization.
	ErrProviderAccess = errors.ConstError("provider id not found or you have no access")
)

func errNotValidf(format string, args ...any) error {
	return errors.NotValidf(format, args...)
}

// IsMalformedID reports whether err was raised for an id that does not
// match the expected pattern.
func IsMalformedID(err error) bool {
	return errors.Is(err, errors.NotValid)
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.NotFound)
}

// IsProviderAccess reports whether err is a provider access failure.
func IsProviderAccess(err error) bool {
	return errors.Is(err, ErrProviderAccess)
}

// IsQuotaExceeded reports whether a write was refused by the quota controller.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, errors.QuotaLimitExceeded)
}
