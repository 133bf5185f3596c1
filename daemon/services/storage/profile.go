package storage

import (
	"fmt"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/lib"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// FlashReader is the subset of flashfs.FlashFS the profile loader depends
// on, kept narrow so storage doesn't need to import flashfs's full API.
type FlashReader interface {
	ReadFile(path string, maxSize int) ([]byte, error)
}

// ProfileFetcher is the pinned HTTPS transport for "github:"-prefixed
// profile paths. Out of scope beyond this interface (no GitHub HTTP
// client internals); a real implementation fetches from the fixed base
// URL of the external collaborator.
type ProfileFetcher interface {
	Fetch(subPath string) ([]byte, error)
}

// ProfileLoader loads a named profile either from FlashFS or, for
// "github:"-prefixed paths, via the pinned ProfileFetcher.
type ProfileLoader struct {
	flash   FlashReader
	fetcher ProfileFetcher
}

// NewProfileLoader creates a loader over flash and fetcher. fetcher may be
// nil if github: paths are never used in a given deployment.
func NewProfileLoader(flash FlashReader, fetcher ProfileFetcher) *ProfileLoader {
	return &ProfileLoader{flash: flash, fetcher: fetcher}
}

// Load resolves path (flash or "github:"-prefixed), parses it into a
// Profile, and reports an error if zero steps were parsed.
func (p *ProfileLoader) Load(path string) (dto.Profile, error) {
	var contents []byte
	var err error

	if lib.IsGitHubPath(path) {
		if p.fetcher == nil {
			return dto.Profile{}, fmt.Errorf("storage: github profile path %q but no fetcher configured", path)
		}
		contents, err = p.fetcher.Fetch(lib.GitHubSubPath(path))
	} else {
		contents, err = p.flash.ReadFile(path, 0)
	}
	if err != nil {
		return dto.Profile{}, fmt.Errorf("storage: loading profile %q: %w", path, err)
	}

	profile := lib.ParseProfile(path, string(contents))
	if len(profile.Steps) == 0 {
		logger.Error("storage: profile %q parsed to zero steps", path)
		return profile, fmt.Errorf("storage: profile %q has zero valid steps", path)
	}
	return profile, nil
}
