package version

import "testing"

func TestParseSemver(t *testing.T) {
	tests := []struct {
		tag  string
		want semver
	}{
		{"v1.4.2", semver{1, 4, 2}},
		{"0.9.0", semver{0, 9, 0}},
		{"v2.0.0-rc.1", semver{2, 0, 0}},
		{"v1.0.0+sha.5114f85", semver{1, 0, 0}},
		{"3.1", semver{3, 1, 0}},
		{"v7", semver{7, 0, 0}},
		{"", semver{}},
		{"garbage", semver{}},
	}
	for _, tc := range tests {
		if got := parseSemver(tc.tag); got != tc.want {
			t.Errorf("parseSemver(%q) = %+v, want %+v", tc.tag, got, tc.want)
		}
	}
}

func TestIsNewer(t *testing.T) {
	newer := [][2]string{
		{"v2.0.0", "v1.9.9"},
		{"v0.4.0", "v0.3.9"},
		{"v0.3.10", "v0.3.9"},
		{"1.0.0", "v0.9.9"},
	}
	for _, pair := range newer {
		if !isNewer(pair[0], pair[1]) {
			t.Errorf("isNewer(%q, %q) = false, want true", pair[0], pair[1])
		}
	}

	notNewer := [][2]string{
		{"v1.0.0", "v1.0.0"},
		{"v1.0.0", "v1.0.1"},
		{"v1.0.0-beta", "v1.0.0"},
		{"v1.0.0", "v1.0.0-beta"},
		{"garbage", "v0.0.1"},
	}
	for _, pair := range notNewer {
		if isNewer(pair[0], pair[1]) {
			t.Errorf("isNewer(%q, %q) = true, want false", pair[0], pair[1])
		}
	}
}
