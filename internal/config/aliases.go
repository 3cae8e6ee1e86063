package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// aliasFile is the on-disk shape of CLUB_ALIASES_FILE:
//
//	aliases:
//	  big dog: Dr
//	  "7 irn": 7i
//	clubs:
//	  PW: [pitch, "p wedge"]
//
// Both sections are merged; clubs lists several labels per code.
type aliasFile struct {
	Aliases map[string]string   `yaml:"aliases"`
	Clubs   map[string][]string `yaml:"clubs"`
}

// LoadClubAliases reads extra club-name aliases. An empty path yields the
// built-in canonicalizer.
func LoadClubAliases(path string) (*domain.Canonicalizer, error) {
	if path == "" {
		return domain.DefaultCanonicalizer, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read club aliases: %w", err)
	}
	return ParseClubAliases(data)
}

// ParseClubAliases decodes alias YAML and builds a canonicalizer from it.
func ParseClubAliases(data []byte) (*domain.Canonicalizer, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse club aliases: %w", err)
	}

	extra := make(map[string]domain.Club, len(f.Aliases))
	for label, code := range f.Aliases {
		club, ok := domain.ParseClub(code)
		if !ok {
			return nil, fmt.Errorf("club aliases: %q maps to unrecognized code %q", label, code)
		}
		extra[label] = club
	}
	for code, labels := range f.Clubs {
		club, ok := domain.ParseClub(code)
		if !ok {
			return nil, fmt.Errorf("club aliases: unrecognized code %q", code)
		}
		for _, label := range labels {
			extra[label] = club
		}
	}

	canon, err := domain.NewCanonicalizer(extra)
	if err != nil {
		return nil, fmt.Errorf("club aliases: %w", err)
	}
	return canon, nil
}
