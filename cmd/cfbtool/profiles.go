package main

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Profile describes a well-known CFB format variant, the same way
// disks.DiskGeometry names a well-known floppy/disk layout: a slug the CLI
// accepts on the command line plus the header fields it expands to.
type Profile struct {
	Slug         string `csv:"slug"`
	Name         string `csv:"name"`
	MajorVersion uint16 `csv:"major_version"`
	SectorSize   uint32 `csv:"sector_size"`
	MiniCutoff   uint32 `csv:"mini_cutoff"`
	Notes        string `csv:"notes"`
}

//go:embed profiles.csv
var profilesRawCSV string

var profiles map[string]Profile

func init() {
	profiles = make(map[string]Profile)
	err := gocsv.UnmarshalToCallback(
		strings.NewReader(profilesRawCSV),
		func(row Profile) error {
			if _, exists := profiles[row.Slug]; exists {
				return fmt.Errorf("duplicate profile slug %q", row.Slug)
			}
			profiles[row.Slug] = row
			return nil
		},
	)
	if err != nil {
		panic(err)
	}
}

func getProfile(slug string) (Profile, error) {
	p, ok := profiles[slug]
	if !ok {
		return Profile{}, fmt.Errorf("no predefined container profile with slug %q", slug)
	}
	return p, nil
}

func sortedProfileSlugs() []string {
	slugs := make([]string, 0, len(profiles))
	for slug := range profiles {
		slugs = append(slugs, slug)
	}
	for i := 1; i < len(slugs); i++ {
		for j := i; j > 0 && slugs[j-1] > slugs[j]; j-- {
			slugs[j-1], slugs[j] = slugs[j], slugs[j-1]
		}
	}
	return slugs
}
