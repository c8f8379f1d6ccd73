package version

import (
	"strconv"
	"strings"
)

type semver struct {
	major, minor, patch int
}

// parseSemver reads the numeric core of a version tag. The leading "v",
// prerelease suffix, and build metadata are ignored; missing components are
// zero, and anything non-numeric in the core yields the zero version.
func parseSemver(tag string) semver {
	core := strings.TrimPrefix(tag, "v")
	core, _, _ = strings.Cut(core, "-")
	core, _, _ = strings.Cut(core, "+")

	var v semver
	dst := []*int{&v.major, &v.minor, &v.patch}
	for i, part := range strings.Split(core, ".") {
		if i == len(dst) {
			break
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return semver{}
		}
		*dst[i] = n
	}
	return v
}

// isNewer reports whether latest is a strictly higher release than current.
// Versions with the same numeric core are never newer than each other.
func isNewer(latest, current string) bool {
	l, c := parseSemver(latest), parseSemver(current)
	if l.major != c.major {
		return l.major > c.major
	}
	if l.minor != c.minor {
		return l.minor > c.minor
	}
	return l.patch > c.patch
}
