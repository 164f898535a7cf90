package transfer

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// versionPlaces is the number of decimals kept when parsing a version.
// Digits beyond it are truncated, never rounded.
const versionPlaces = 2

// ParseVersion parses a decimal version string such as "2008120100.01"
// and truncates it to the release and a two digit patch level. The
// truncation only normalizes the returned value; CheckVersion compares
// releases.
func ParseVersion(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse version %q", s)
	}
	return d.Truncate(versionPlaces), nil
}

// CheckVersion accepts data whose release (integer part) equals the
// target's. Patch levels may differ, so digits lost to truncation never
// change the outcome.
func CheckVersion(source, target string) error {
	s, err := ParseVersion(source)
	if err != nil {
		return &VersionMismatchError{Source: source, Target: target, Err: err}
	}
	t, err := ParseVersion(target)
	if err != nil {
		return &VersionMismatchError{Source: source, Target: target, Err: err}
	}
	if s.IntPart() != t.IntPart() {
		return &VersionMismatchError{Source: source, Target: target}
	}
	return nil
}
