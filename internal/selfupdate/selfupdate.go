// Package selfupdate wraps GitHub-release self-updating for the mfp
// binary behind a two-call API: check for a newer release, apply it.
package selfupdate

import (
	"fmt"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

// RepoSlug is the GitHub repository updates are fetched from.
const RepoSlug = "blackcoderx/mfp"

// CheckResult describes the latest published release relative to the
// running binary.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateAvailable bool
	ReleaseNotes   string
}

// Check queries GitHub for the latest release. A dev build (anything
// that does not parse as semver) always reports an available update;
// Apply refuses to replace such a build.
func Check(currentVersion string) (*CheckResult, error) {
	latest, found, err := selfupdate.DetectLatest(RepoSlug)
	if err != nil {
		return nil, fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return &CheckResult{CurrentVersion: currentVersion}, nil
	}

	result := &CheckResult{
		CurrentVersion: currentVersion,
		LatestVersion:  latest.Version.String(),
		ReleaseNotes:   latest.ReleaseNotes,
	}
	current, err := semver.ParseTolerant(currentVersion)
	if err != nil {
		result.UpdateAvailable = true
		return result, nil
	}
	result.UpdateAvailable = latest.Version.GT(current)
	return result, nil
}

// Apply replaces the running binary with the latest release. It returns
// the version updated to, or the current version when already up to
// date.
func Apply(currentVersion string) (string, error) {
	current, err := semver.ParseTolerant(currentVersion)
	if err != nil {
		return "", fmt.Errorf("cannot self-update a non-release build (%q); install a released binary first", currentVersion)
	}

	latest, err := selfupdate.UpdateSelf(current, RepoSlug)
	if err != nil {
		return "", fmt.Errorf("updating binary: %w", err)
	}
	return latest.Version.String(), nil
}
