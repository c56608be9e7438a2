package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/widegraph/pkg/validation"
)

// profile is a reusable load configuration. Command-line flags that were set
// explicitly win over profile values; profile values win over flag defaults.
//
//	vertices: vertices.ndjson
//	edges: edges.ndjson
//	store: badger
//	data: ./data/widegraph
//	workers: 16
//	indexes:
//	  - vertex/person/name
//	  - edge/knows/weight
type profile struct {
	Vertices string   `yaml:"vertices"`
	Edges    string   `yaml:"edges"`
	Store    string   `yaml:"store"`
	Data     string   `yaml:"data"`
	DSN      string   `yaml:"dsn"`
	Refs     string   `yaml:"refs"`
	Batch    int      `yaml:"batch"`
	Workers  int      `yaml:"workers"`
	SkipWAL  *bool    `yaml:"skip_wal"`
	Indexes  []string `yaml:"indexes"`
	Feed     string   `yaml:"feed"`
}

func loadProfile(path string) (*profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *profile) validate() error {
	return validation.NewConfigValidator("LoadProfile").
		When(p.Store != "", func(cv *validation.ConfigValidator) {
			cv.OneOf("store", p.Store, []string{"memory", "badger", "postgres"})
		}).
		When(p.Store == "postgres", func(cv *validation.ConfigValidator) {
			cv.Required("dsn", p.DSN)
		}).
		NonNegative("batch", p.Batch).
		NonNegative("workers", p.Workers).
		Validate()
}

// apply writes profile values through to the flags that were not set
// explicitly on the command line. Must run after flag.Parse.
func (p *profile) apply() {
	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	setIf := func(name, val string) {
		if !explicit[name] && val != "" {
			flag.Set(name, val)
		}
	}
	setIf("vertices", p.Vertices)
	setIf("edges", p.Edges)
	setIf("store", p.Store)
	setIf("data", p.Data)
	setIf("dsn", p.DSN)
	setIf("refs", p.Refs)
	setIf("feed", p.Feed)
	setIf("index", strings.Join(p.Indexes, ","))
	if p.Batch > 0 {
		setIf("batch", strconv.Itoa(p.Batch))
	}
	if p.Workers > 0 {
		setIf("workers", strconv.Itoa(p.Workers))
	}
	if p.SkipWAL != nil {
		setIf("skip-wal", strconv.FormatBool(*p.SkipWAL))
	}
}
