// SPDX-License-Identifier: MIT
//
// Package build carries the binary's identity, injected at link time:
//
//	go build -ldflags "-X bpmtag/pkg/build.buildName=bpmtag \
//	  -X bpmtag/pkg/build.buildVersion=0.3.0 \
//	  -X bpmtag/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X bpmtag/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run without ldflags; Initialize reports the missing flag
// and the defaults below stay in place.
package build

import "fmt"

// Description is the one-line summary shown by the CLI help.
const Description = "Estimate BPM and musical key of audio tracks and write them to ID3 tags"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the flags as a single version line.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "bpmtag",
		Description: Description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize copies the ldflags variables into the build information. It
// returns an error naming the first missing flag and leaves the defaults
// untouched in that case.
func Initialize() error {
	required := []struct {
		name  string
		value string
	}{
		{"BuildName", buildName},
		{"BuildTime", buildTime},
		{"BuildCommit", buildCommit},
		{"BuildVersion", buildVersion},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
