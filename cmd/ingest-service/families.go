package main

import (
	"fmt"

	"wisegate/internal/config"
	"wisegate/internal/normalize"
)

func buildRouter(families []config.FamilyConfig) (*normalize.Router, error) {
	profiles := make([]*normalize.Profile, 0, len(families))
	for _, f := range families {
		extra := make(map[normalize.Kind]string, len(f.Tables))
		for kind, table := range f.Tables {
			extra[normalize.Kind(kind)] = table
		}

		p, err := normalize.NewProfile(f.Name, normalize.Mode(f.Mode), f.Topics, f.Table, f.ConnectionLogTable, f.DeviceFrom, extra)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return normalize.NewRouter(profiles...)
}

// dashboardSource picks the table the datasource reads: the named family's
// primary table.
func dashboardSource(router *normalize.Router, family string) (normalize.Kind, string, error) {
	p, ok := router.Profile(family)
	if !ok {
		return "", "", fmt.Errorf("dashboard family %s not configured", family)
	}
	kind := p.Mode.PrimaryKind()
	table, ok := p.TableFor(kind)
	if !ok {
		return "", "", fmt.Errorf("family %s has no %s table", family, kind)
	}
	return kind, table, nil
}
