package devicedesc

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrBadPattern indicates a pattern field whose value is not a valid regular
// expression. Matches surfaces it instead of silently reporting "no match" so
// that a broken template is visible to the operator rather than quietly
// matching nothing.
var ErrBadPattern = errors.New("invalid match pattern")

// fieldPair is one comparable field in evaluation order.
type fieldPair struct {
	name  string
	left  string
	right string
}

// Matches reports whether the receiver, acting as a pattern, accepts the
// candidate. An absent pattern field matches anything; a present pattern
// field fails against a candidate that lacks the field; otherwise the pattern
// value is applied as a case-insensitive regular expression searched anywhere
// within the candidate value. Serial is never compared: templates describe
// device models, not individual units.
func (d *Description) Matches(candidate *Description) (bool, error) {
	pattern := d
	if pattern == nil {
		pattern = &Description{}
	}

	if candidate == nil {
		candidate = &Description{}
	}

	pairs := []fieldPair{
		{"interface", pattern.InterfaceName, candidate.InterfaceName},
		{"type", pattern.DeviceClass, candidate.DeviceClass},
		{"manufacturer", pattern.Manufacturer, candidate.Manufacturer},
		{"product", pattern.Product, candidate.Product},
		{"version", pattern.Version, candidate.Version},
		{"capabilities", pattern.Capabilities, candidate.Capabilities},
	}

	for _, pair := range pairs {
		ok, err := fieldMatches(pair.left, pair.right)
		if err != nil {
			return false, fmt.Errorf("%w: field %q: %v", ErrBadPattern, pair.name, err)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// fieldMatches applies the per-field rule. The empty pattern is a wildcard;
// an empty value cannot satisfy a non-empty pattern.
func fieldMatches(pattern, value string) (bool, error) {
	if pattern == "" {
		return true, nil
	}

	if value == "" {
		return false, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(value), nil
}
