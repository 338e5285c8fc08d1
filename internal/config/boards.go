package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// BoardSeed describes a board to provision at startup. Seeding is
// create-if-missing: existing boards are left untouched.
type BoardSeed struct {
	Slug        string         `yaml:"slug"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Settings    map[string]any `yaml:"settings"`
}

type boardsFile struct {
	Boards []BoardSeed `yaml:"boards"`
}

func LoadBoardsFile(path string) ([]BoardSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boards file: %w", err)
	}

	var parsed boardsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse boards file: %w", err)
	}

	for i, seed := range parsed.Boards {
		if seed.Slug == "" || seed.Title == "" {
			return nil, fmt.Errorf("boards file entry %d: slug and title are required", i)
		}
	}
	return parsed.Boards, nil
}
