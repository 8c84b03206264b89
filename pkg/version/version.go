// Package version holds the relay release version and helpers to compare
// versions advertised by other relays.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the release version of this relay. It is advertised in the
// discovery TXT record.
const Current = "1.2.0"

// RelayVersion is a parsed "major.minor.patch" version.
type RelayVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses "major.minor" or "major.minor.patch". A leading "v" is
// accepted.
func Parse(s string) (RelayVersion, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return RelayVersion{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" {
			return RelayVersion{}, fmt.Errorf("invalid version %q: bad component %q", s, p)
		}
		nums[i] = uint16(n)
	}
	return RelayVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustCurrent returns Current parsed.
func MustCurrent() RelayVersion {
	v, err := Parse(Current)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patch".
func (v RelayVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether other shares the major version. Relays of the
// same major version accept the same formats and configuration keys.
func (v RelayVersion) Compatible(other RelayVersion) bool {
	return v.Major == other.Major
}

// Less reports whether v orders before other.
func (v RelayVersion) Less(other RelayVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// CheckCompatible parses an advertised version and reports whether it is
// compatible with Current. An empty version is treated as compatible.
func CheckCompatible(advertised string) (bool, error) {
	if advertised == "" {
		return true, nil
	}
	v, err := Parse(advertised)
	if err != nil {
		return false, err
	}
	return MustCurrent().Compatible(v), nil
}
