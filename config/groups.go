package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/digitaljerry/mbus/model"
)

type groupsFile struct {
	Groups []model.JourneyGroup `yaml:"groups"`
}

// Reads journey groups from a YAML file of the form
//
//	groups:
//	  - name: To work
//	    stops:
//	      - stop: "123"
//	        route: G6
func ReadGroups(path string) ([]model.JourneyGroup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening groups file: %w", err)
	}
	defer f.Close()

	groups, err := ParseGroups(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return groups, nil
}

func ParseGroups(r io.Reader) ([]model.JourneyGroup, error) {
	doc := groupsFile{}
	err := yaml.NewDecoder(r).Decode(&doc)
	if err == io.EOF {
		return []model.JourneyGroup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	err = NormalizeGroups(doc.Groups)
	if err != nil {
		return nil, err
	}
	if doc.Groups == nil {
		return []model.JourneyGroup{}, nil
	}
	return doc.Groups, nil
}

// Validates groups in place. Groups lacking an ID are given a random
// one.
func NormalizeGroups(groups []model.JourneyGroup) error {
	seen := map[string]bool{}
	for i := range groups {
		g := &groups[i]

		g.ID = strings.TrimSpace(g.ID)
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		seen[g.ID] = true

		if g.Stops == nil {
			g.Stops = []model.StopRoutePair{}
		}
		for j := range g.Stops {
			pair := &g.Stops[j]
			pair.StopID = strings.TrimSpace(pair.StopID)
			pair.Route = strings.TrimSpace(pair.Route)
			if pair.StopID == "" || pair.Route == "" {
				return fmt.Errorf("group %q: stop %d needs both stop and route", g.ID, j)
			}
		}
	}
	return nil
}
