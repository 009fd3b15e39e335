package generations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultProfileDir is where NixOS keeps the system profile and its
// generation links.
const DefaultProfileDir = "/nix/var/nix/profiles"

// DefaultProfileName is the profile holding system generations.
const DefaultProfileName = "system"

var linkPattern = regexp.MustCompile(`^(.+)-(\d+)-link$`)

// ProfileScanner reads generation history directly from the profile
// directory: each generation is a symlink named <profile>-<n>-link and the
// bare <profile> symlink points at the current one. This is the native,
// in-process read path; no external command is involved.
type ProfileScanner struct {
	// Dir is the profile directory, DefaultProfileDir in production.
	Dir string

	// Profile is the profile name, DefaultProfileName in production.
	Profile string
}

// NewProfileScanner creates a scanner over the standard system profile.
func NewProfileScanner() *ProfileScanner {
	return &ProfileScanner{Dir: DefaultProfileDir, Profile: DefaultProfileName}
}

// Generations implements Source by scanning the profile directory.
func (s *ProfileScanner) Generations(ctx context.Context) ([]Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile directory %s: %w", s.Dir, err)
	}

	currentID, err := s.CurrentID()
	if err != nil {
		return nil, err
	}

	var gens []Generation
	for _, entry := range entries {
		m := linkPattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != s.Profile {
			continue
		}
		id, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		info, err := os.Lstat(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to stat generation link %s: %w", entry.Name(), err)
		}

		gens = append(gens, Generation{
			ID:          id,
			Timestamp:   info.ModTime(),
			Current:     id == currentID,
			Description: s.readDescription(entry.Name()),
		})
	}

	return gens, nil
}

// CurrentID resolves the profile symlink to the running generation number.
func (s *ProfileScanner) CurrentID() (int, error) {
	target, err := os.Readlink(filepath.Join(s.Dir, s.Profile))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve current generation: %w", err)
	}
	m := linkPattern.FindStringSubmatch(filepath.Base(target))
	if m == nil {
		return 0, fmt.Errorf("profile link %s does not name a generation", target)
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, fmt.Errorf("profile link %s has a malformed generation number", target)
	}
	return id, nil
}

// GenerationPath returns the store path a generation link resolves to.
func (s *ProfileScanner) GenerationPath(id int) (string, error) {
	link := filepath.Join(s.Dir, fmt.Sprintf("%s-%d-link", s.Profile, id))
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("failed to resolve generation %d: %w", id, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.Dir, target)
	}
	return target, nil
}

// SetCurrent atomically repoints the profile symlink at the given
// generation. The link is created at a temporary name and renamed over the
// profile so readers never observe a missing profile.
func (s *ProfileScanner) SetCurrent(id int) error {
	linkName := fmt.Sprintf("%s-%d-link", s.Profile, id)
	if _, err := os.Lstat(filepath.Join(s.Dir, linkName)); err != nil {
		return fmt.Errorf("generation %d does not exist: %w", id, err)
	}

	tmp := filepath.Join(s.Dir, fmt.Sprintf(".%s.tmp-%d", s.Profile, os.Getpid()))
	if err := os.Symlink(linkName, tmp); err != nil {
		return fmt.Errorf("failed to create profile link: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.Dir, s.Profile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to switch profile link: %w", err)
	}
	return nil
}

// readDescription returns the generation's description file content when
// the system records one. Missing files are normal.
func (s *ProfileScanner) readDescription(linkName string) string {
	data, err := os.ReadFile(filepath.Join(s.Dir, linkName, "nixos-generation-description"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
