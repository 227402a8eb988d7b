// Package version implements the spec's Version utility (§4.1, §2): parsing
// and validating the semantic-version strings carried by hook descriptors
// and facets.
//
// It wraps github.com/Masterminds/semver/v3, the semver library attested
// across the reference corpus's manifests (pulumi, crossplane, kptdev, and
// others all depend on it) rather than hand-rolling a parser.
package version

import (
	"github.com/Masterminds/semver/v3"

	"github.com/plugforge/compose/cerrs"
)

// Default is the version a hook descriptor or facet takes on when none is
// supplied (spec §3 "version: semver string (default \"0.0.0\")").
const Default = "0.0.0"

// Validate reports whether s parses as a semantic version. An empty string
// is rejected; callers wanting the default should substitute Default
// before calling Validate.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

// Parse parses s as a semantic version, returning a *cerrs.InvalidVersion
// on failure.
func Parse(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, &cerrs.InvalidVersion{Value: s, Cause: err}
	}
	return v, nil
}

// Normalize parses s (defaulting empty to Default) and returns its
// canonical string form, or an error if s is set but invalid.
func Normalize(s string) (string, error) {
	if s == "" {
		s = Default
	}
	v, err := Parse(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
