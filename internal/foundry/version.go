package foundry

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// DefaultMaxGroupDigits bounds the length of each version component.
const DefaultMaxGroupDigits = 9

// DefaultRuntimeVersion is used when no runtime version is configured.
const DefaultRuntimeVersion = "12.0.0"

// SanitizedVersion is a MAJOR.MINOR.PATCH triple that always satisfies
// semantic-version syntax.
type SanitizedVersion struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// FallbackVersion is returned when nothing usable can be recovered.
var FallbackVersion = SanitizedVersion{}

func (v SanitizedVersion) String() string {
	return strconv.FormatUint(v.Major, 10) + "." +
		strconv.FormatUint(v.Minor, 10) + "." +
		strconv.FormatUint(v.Patch, 10)
}

// Semver returns the version in the "vMAJOR.MINOR.PATCH" form used by
// golang.org/x/mod/semver.
func (v SanitizedVersion) Semver() string {
	return "v" + v.String()
}

// Sanitizer repairs malformed runtime version reports.
//
// The runtime logs its CUDA version broken across lines ("5\n      7"), which
// it later fails to parse. Sanitize keeps only the digit groups, in order, so
// that input becomes 5.7.0.
type Sanitizer struct {
	// MaxGroupDigits bounds each used component after leading zeros are
	// dropped. Zero means DefaultMaxGroupDigits.
	MaxGroupDigits int
}

// SanitizeVersion sanitizes raw with the default bound.
func SanitizeVersion(raw string) SanitizedVersion {
	return Sanitizer{}.Sanitize(raw)
}

// Sanitize converts raw into a valid version. It is total: inputs with no
// digits, or with an oversized component, yield FallbackVersion.
func (s Sanitizer) Sanitize(raw string) SanitizedVersion {
	limit := s.MaxGroupDigits
	if limit <= 0 {
		limit = DefaultMaxGroupDigits
	}

	groups := digitGroups(strings.TrimSpace(raw), 3)
	if len(groups) == 0 {
		return FallbackVersion
	}

	var parts [3]uint64
	for i, g := range groups {
		g = strings.TrimLeft(g, "0")
		if g == "" {
			continue
		}
		if len(g) > limit {
			return FallbackVersion
		}
		n, err := strconv.ParseUint(g, 10, 64)
		if err != nil {
			return FallbackVersion
		}
		parts[i] = n
	}

	v := SanitizedVersion{Major: parts[0], Minor: parts[1], Patch: parts[2]}
	if !semver.IsValid(v.Semver()) {
		return FallbackVersion
	}
	return v
}

// digitGroups returns up to max maximal runs of ASCII digits, left to right.
// Whitespace and every other non-digit byte end the current run.
func digitGroups(s string, max int) []string {
	var groups []string
	start := -1
	for i := 0; i <= len(s); i++ {
		isDigit := i < len(s) && s[i] >= '0' && s[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			groups = append(groups, s[start:i])
			start = -1
			if len(groups) == max {
				return groups
			}
		}
	}
	return groups
}
