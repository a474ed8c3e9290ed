package version

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a decomposed release string such as "2.1.0-beta.3".
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string // Lowercased tag after the first '-', empty for releases
	Raw        string
}

// IsPrerelease reports whether the version carries a prerelease tag.
func (v Version) IsPrerelease() bool {
	return v.Prerelease != ""
}

func (v Version) String() string {
	return v.Raw
}

// Parse splits a version string into its numeric core and prerelease tag.
// It never fails: unparsable core components are read as 0, a leading "v"
// and any "+build" suffix are dropped.
func Parse(s string) Version {
	v := Version{Raw: s}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	if idx := strings.Index(s, "+"); idx != -1 {
		s = s[:idx]
	}

	core := s
	if idx := strings.Index(s, "-"); idx != -1 {
		core = s[:idx]
		v.Prerelease = strings.ToLower(s[idx+1:])
	}

	parts := strings.Split(core, ".")
	nums := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		nums[i] = leadingInt(parts[i])
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]

	return v
}

// Compare returns -1, 0 or 1 depending on whether a is older than, equal to
// or newer than b. A release always sorts after any prerelease of the same
// core version; prerelease tags are ordered alpha < beta < rc, then by their
// numeric suffix.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// Compare orders v against other, see Compare.
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}

	switch {
	case v.Prerelease == "" && other.Prerelease == "":
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}

	return comparePrerelease(v.Prerelease, other.Prerelease)
}

// prerelease is a parsed tag like "beta.3" or "rc1".
type prerelease struct {
	kind   string
	number int
	hasNum bool
}

var kindRank = map[string]int{
	"alpha": 1,
	"beta":  2,
	"rc":    3,
}

func parsePrerelease(tag string) prerelease {
	fields := strings.Split(tag, ".")
	head := fields[0]

	// "rc1" style tags carry the number inside the first identifier.
	split := len(head)
	for split > 0 && head[split-1] >= '0' && head[split-1] <= '9' {
		split--
	}

	p := prerelease{kind: head[:split]}
	if split < len(head) && split > 0 {
		p.number, _ = strconv.Atoi(head[split:])
		p.hasNum = true
		return p
	}
	if split == 0 {
		// purely numeric tag such as "1.0.0-1"
		p.kind = ""
		p.number, _ = strconv.Atoi(head)
		p.hasNum = head != ""
		return p
	}

	for _, f := range fields[1:] {
		if n, err := strconv.Atoi(f); err == nil {
			p.number = n
			p.hasNum = true
			break
		}
	}
	return p
}

func comparePrerelease(a, b string) int {
	if a == b {
		return 0
	}

	pa, pb := parsePrerelease(a), parsePrerelease(b)
	ra, rb := kindRank[pa.kind], kindRank[pb.kind]
	if c := compareInt(ra, rb); c != 0 {
		return c
	}

	if pa.kind == pb.kind {
		switch {
		case !pa.hasNum && pb.hasNum:
			return -1
		case pa.hasNum && !pb.hasNum:
			return 1
		case pa.hasNum && pb.hasNum:
			if c := compareInt(pa.number, pb.number); c != 0 {
				return c
			}
		}
	}

	// Unknown kinds (or identical kind and number with trailing identifiers)
	// fall back to semver identifier precedence, then to plain string order
	// so the result stays antisymmetric for tags semver rejects.
	if c := semver.Compare("v0.0.0-"+a, "v0.0.0-"+b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
