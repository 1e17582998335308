package solidity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a compiler version triple.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// CheckedArithmetic is the first compiler release with built-in overflow checks.
var CheckedArithmetic = Version{0, 8, 0}

var (
	reComparator = regexp.MustCompile(`(\^|~|>=|<=|>|<|=)?\s*v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
	reHyphen     = regexp.MustCompile(`^\s*(\S+)\s+-\s+(\S+)\s*$`)
)

// Floor returns the lowest compiler version the constraint admits. ok is false
// when the constraint has no lower bound or cannot be read.
func Floor(constraint string) (v Version, ok bool) {
	constraint = strings.TrimSpace(constraint)
	constraint = strings.TrimPrefix(constraint, "pragma")
	constraint = strings.TrimSpace(constraint)
	constraint = strings.TrimPrefix(constraint, "solidity")
	constraint = strings.TrimSuffix(strings.TrimSpace(constraint), ";")
	if constraint == "" {
		return Version{}, false
	}
	first := true
	for _, alt := range strings.Split(constraint, "||") {
		lower, has := alternativeFloor(alt)
		if !has {
			return Version{}, false
		}
		if first || lower.Less(v) {
			v = lower
			first = false
		}
	}
	return v, !first
}

// alternativeFloor computes the lower bound of one space-separated range.
// A hyphen range "A - B" reads as ">=A <=B".
func alternativeFloor(alt string) (Version, bool) {
	if m := reHyphen.FindStringSubmatch(alt); m != nil {
		alt = ">=" + m[1] + " <=" + m[2]
	}
	var floor Version
	found := false
	for _, m := range reComparator.FindAllStringSubmatch(alt, -1) {
		op := m[1]
		if op == "<" || op == "<=" {
			continue
		}
		v := Version{Major: atoi(m[2]), Minor: atoi(m[3]), Patch: atoi(m[4])}
		if op == ">" {
			v.Patch++
		}
		if !found || floor.Less(v) {
			floor = v
			found = true
		}
	}
	return floor, found
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// IsVulnerableVersion reports whether code under the constraint may be
// compiled without checked arithmetic. Unknown constraints count as vulnerable.
func IsVulnerableVersion(constraint string) bool {
	floor, ok := Floor(constraint)
	if !ok {
		return true
	}
	return floor.Less(CheckedArithmetic)
}
