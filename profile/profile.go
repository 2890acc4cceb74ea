// Package profile loads the AI profiles that parameterize a faction
// controller: the entity catalog, the regulator targets and the timings of
// every planner. Profiles are YAML; a built-in set is embedded.
package profile

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/vimy/vimy-faction/rules"
	"github.com/nstehr/vimy/vimy-faction/sample"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EntityKind separates units from buildings in the catalog.
type EntityKind string

const (
	KindUnit     EntityKind = "unit"
	KindBuilding EntityKind = "building"
)

// File is the top-level YAML document.
type File struct {
	Profiles []*Profile `yaml:"profiles"`
}

// Profile is one AI personality.
type Profile struct {
	Name           string              `yaml:"name"`
	Seed           uint64              `yaml:"seed"`
	Catalog        []*Entity           `yaml:"catalog"`
	CategoryLimits map[string]int      `yaml:"category_limits"`
	Units          []RegulatorConfig   `yaml:"units"`
	Buildings      []RegulatorConfig   `yaml:"buildings"`
	Groups         map[string][]Member `yaml:"groups"`
	Tasks          TasksConfig         `yaml:"tasks"`
	Collection     CollectionConfig    `yaml:"collection"`
	Attack         AttackConfig        `yaml:"attack"`
	Population     PopulationConfig    `yaml:"population"`
	Territory      TerritoryConfig     `yaml:"territory"`
	Upgrades       UpgradesConfig      `yaml:"upgrades"`
	Construction   ConstructionConfig  `yaml:"construction"`
	Defense        DefenseConfig       `yaml:"defense"`

	catalog map[string]*Entity
}

// Entity is a catalog entry: what an entity costs and what it needs.
type Entity struct {
	Code       string         `yaml:"code"`
	Kind       EntityKind     `yaml:"kind"`
	Category   string         `yaml:"category"`
	Cost       map[string]int `yaml:"cost"`
	Requires   []string       `yaml:"requires"`
	Condition  string         `yaml:"condition"`
	Population int            `yaml:"population"` // slots a unit occupies
	Provides   int            `yaml:"provides"`   // population slots a building adds
	Center     bool           `yaml:"center"`     // owns a territory scope
	UpgradesTo string         `yaml:"upgrades_to"`

	Compiled *rules.Condition `yaml:"-"`
}

// RegulatorConfig sets the supply targets for one entity code.
type RegulatorConfig struct {
	Code       string          `yaml:"code"`
	Min        sample.IntRange `yaml:"min"`
	Max        sample.IntRange `yaml:"max"`
	Ratio      sample.Range    `yaml:"ratio"` // units only: share of the population cap
	MaxPending int             `yaml:"max_pending"`
	Cooldown   sample.Range    `yaml:"cooldown"`
	AutoCreate bool            `yaml:"auto_create"`
	Placement  Placement       `yaml:"placement"` // buildings only
}

// Strategy names for building placement anchors.
const (
	AnchorCenter   = "center"
	AnchorResource = "resource"
	AnchorBuilding = "building"
)

type Placement struct {
	Strategy string `yaml:"strategy"`
	Target   string `yaml:"target"` // resource type or building code
}

// Member is one entry of a regulator group.
type Member struct {
	Code   string  `yaml:"code"`
	Weight float64 `yaml:"weight"`
}

type TasksConfig struct {
	Levels      int          `yaml:"levels"`
	Promotion   sample.Range `yaml:"promotion"`
	Drain       sample.Range `yaml:"drain"`
	MaxAttempts int          `yaml:"max_attempts"`
}

type CollectionConfig struct {
	Interval  sample.Range         `yaml:"interval"`
	Resources []ResourceAllocation `yaml:"resources"`
}

type ResourceAllocation struct {
	Type           string       `yaml:"type"`
	PerNodeRatio   sample.Range `yaml:"per_node_ratio"`
	MaxTotalRatio  sample.Range `yaml:"max_total_ratio"`
	MinCollectors  int          `yaml:"min_collectors"`
	Collectors     string       `yaml:"collectors"` // group name
	MaxActiveNodes int          `yaml:"max_active_nodes"`
}

// Threshold is a resource amount re-sampled on every check.
type Threshold struct {
	Resource string       `yaml:"resource"`
	Amount   sample.Range `yaml:"amount"`
}

// Target faction selection strategies.
const (
	PickRandom = "random"
	PickMost   = "most"
	PickLeast  = "least"
)

type AttackConfig struct {
	Enabled        bool         `yaml:"enabled"`
	PeaceTime      float64      `yaml:"peace_time"`
	Strategy       string       `yaml:"strategy"`
	Criterion      string       `yaml:"criterion"`
	SelectInterval sample.Range `yaml:"select_interval"`
	LaunchInterval sample.Range `yaml:"launch_interval"`
	EngageInterval sample.Range `yaml:"engage_interval"`
	MinResources   []Threshold  `yaml:"min_resources"`
	CancelBelow    []Threshold  `yaml:"cancel_below"`
	Army           string       `yaml:"army"` // group name
	MinUnits       int          `yaml:"min_units"`
	TargetUnits    bool         `yaml:"target_units"` // defeat requires destroying every entity

	Compiled *rules.Score `yaml:"-"`
}

type PopulationConfig struct {
	Interval  sample.Range    `yaml:"interval"`
	FreeSlots sample.IntRange `yaml:"free_slots"`
	Housing   string          `yaml:"housing"` // group name
}

type TerritoryConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Interval     sample.Range    `yaml:"interval"`
	Centers      sample.IntRange `yaml:"centers"`
	Center       string          `yaml:"center"`
	Resource     string          `yaml:"resource"`
	MinResources []Threshold     `yaml:"min_resources"`
}

type UpgradesConfig struct {
	Interval sample.Range `yaml:"interval"`
	// Timeout bounds how long an order may go unobserved before the
	// source is ordered again. Zero means DefaultUpgradeTimeout.
	Timeout sample.Range `yaml:"timeout"`
	Items   []Upgrade    `yaml:"items"`
}

// DefaultUpgradeTimeout applies when a profile sets no upgrade timeout.
const DefaultUpgradeTimeout = 120.0

type Upgrade struct {
	From      string         `yaml:"from"`
	To        string         `yaml:"to"`
	Cost      map[string]int `yaml:"cost"`
	Condition string         `yaml:"condition"`

	Compiled *rules.Condition `yaml:"-"`
}

type ConstructionConfig struct {
	Interval sample.Range    `yaml:"interval"`
	Builders sample.IntRange `yaml:"builders"`
	Group    string          `yaml:"group"`
	Priority int             `yaml:"priority"`
	Repair   bool            `yaml:"repair"`
}

type DefenseConfig struct {
	Enabled bool         `yaml:"enabled"`
	Quiet   sample.Range `yaml:"quiet"`
	Army    string       `yaml:"army"`
}

// Entity returns the catalog entry for code.
func (p *Profile) Entity(code string) (*Entity, bool) {
	e, ok := p.catalog[strings.ToLower(code)]
	return e, ok
}

// Group returns the members of a named group; unknown names yield nil.
func (p *Profile) Group(name string) []Member {
	return p.Groups[name]
}

// GroupCodes returns just the codes of a group.
func (p *Profile) GroupCodes(name string) []string {
	members := p.Groups[name]
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Code
	}
	return out
}

// UnitConfig returns the unit regulator config for code.
func (p *Profile) UnitConfig(code string) (RegulatorConfig, bool) {
	return findConfig(p.Units, code)
}

// BuildingConfig returns the building regulator config for code.
func (p *Profile) BuildingConfig(code string) (RegulatorConfig, bool) {
	return findConfig(p.Buildings, code)
}

func findConfig(list []RegulatorConfig, code string) (RegulatorConfig, bool) {
	for _, c := range list {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return RegulatorConfig{}, false
}

// Set is a loaded collection of profiles keyed by name.
type Set struct {
	profiles map[string]*Profile
	order    []string
}

// Get returns the named profile.
func (s *Set) Get(name string) (*Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", name, ErrUnknownProfile)
	}
	return p, nil
}

// Names lists profiles in file order.
func (s *Set) Names() []string { return append([]string(nil), s.order...) }

// Defaults parses the embedded profiles.
func Defaults() (*Set, error) {
	return Parse(defaultsYAML)
}

// Load reads the embedded profiles, then overlays the file at path.
// Profiles in the file replace built-ins with the same name.
func Load(path string) (*Set, error) {
	set, err := Defaults()
	if err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	if path == "" {
		return set, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	user, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, name := range user.order {
		if _, exists := set.profiles[name]; !exists {
			set.order = append(set.order, name)
		}
		set.profiles[name] = user.profiles[name]
	}
	return set, nil
}

// Parse decodes and validates a YAML profile document.
func Parse(data []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}
	set := &Set{profiles: make(map[string]*Profile)}
	for _, p := range f.Profiles {
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.profiles[p.Name]; dup {
			return nil, fmt.Errorf("profile %q defined twice", p.Name)
		}
		set.profiles[p.Name] = p
		set.order = append(set.order, p.Name)
	}
	return set, nil
}

func (p *Profile) applyDefaults() {
	if p.Tasks.Levels <= 0 {
		p.Tasks.Levels = 3
	}
	if p.Tasks.MaxAttempts <= 0 {
		p.Tasks.MaxAttempts = 3
	}
	if p.Attack.Strategy == "" {
		p.Attack.Strategy = PickRandom
	}
	for i := range p.Units {
		if p.Units[i].MaxPending <= 0 {
			p.Units[i].MaxPending = 1
		}
	}
	for i := range p.Buildings {
		if p.Buildings[i].MaxPending <= 0 {
			p.Buildings[i].MaxPending = 1
		}
		if p.Buildings[i].Placement.Strategy == "" {
			p.Buildings[i].Placement.Strategy = AnchorCenter
		}
	}
	for i := range p.Collection.Resources {
		if p.Collection.Resources[i].MaxActiveNodes <= 0 {
			p.Collection.Resources[i].MaxActiveNodes = 2
		}
	}
}

// Validate indexes the catalog, compiles every expression and checks that
// each regulator and group refers to a catalog entry of the right kind.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return &ConfigError{Reason: "profile without a name"}
	}
	p.catalog = make(map[string]*Entity, len(p.Catalog))
	for _, e := range p.Catalog {
		key := strings.ToLower(e.Code)
		if key == "" {
			return &ConfigError{Profile: p.Name, Reason: "catalog entry without a code"}
		}
		if e.Kind != KindUnit && e.Kind != KindBuilding {
			return &ConfigError{Profile: p.Name, Code: e.Code, Reason: fmt.Sprintf("unknown kind %q", e.Kind)}
		}
		c, err := rules.Compile(e.Condition)
		if err != nil {
			return &ConfigError{Profile: p.Name, Code: e.Code, Reason: "bad condition", Err: err}
		}
		e.Compiled = c
		p.catalog[key] = e
	}

	for _, c := range p.Units {
		if err := p.requireKind(c.Code, KindUnit); err != nil {
			return err
		}
	}
	for _, c := range p.Buildings {
		if err := p.requireKind(c.Code, KindBuilding); err != nil {
			return err
		}
		switch c.Placement.Strategy {
		case AnchorCenter, AnchorResource, AnchorBuilding:
		default:
			return &ConfigError{Profile: p.Name, Code: c.Code, Reason: fmt.Sprintf("unknown placement strategy %q", c.Placement.Strategy)}
		}
	}
	for name, members := range p.Groups {
		for _, m := range members {
			if _, ok := p.Entity(m.Code); !ok {
				return &ConfigError{Profile: p.Name, Code: m.Code, Reason: "group " + name, Err: ErrUnknownEntity}
			}
		}
	}

	switch p.Attack.Strategy {
	case PickRandom, PickMost, PickLeast:
	default:
		return &ConfigError{Profile: p.Name, Reason: fmt.Sprintf("unknown attack strategy %q", p.Attack.Strategy)}
	}
	score, err := rules.CompileScore(p.Attack.Criterion)
	if err != nil {
		return &ConfigError{Profile: p.Name, Reason: "bad attack criterion", Err: err}
	}
	p.Attack.Compiled = score

	for i := range p.Upgrades.Items {
		u := &p.Upgrades.Items[i]
		if _, ok := p.Entity(u.From); !ok {
			return &ConfigError{Profile: p.Name, Code: u.From, Reason: "upgrade source", Err: ErrUnknownEntity}
		}
		if _, ok := p.Entity(u.To); !ok {
			return &ConfigError{Profile: p.Name, Code: u.To, Reason: "upgrade target", Err: ErrUnknownEntity}
		}
		c, err := rules.Compile(u.Condition)
		if err != nil {
			return &ConfigError{Profile: p.Name, Code: u.From, Reason: "bad upgrade condition", Err: err}
		}
		u.Compiled = c
	}
	if p.Territory.Enabled {
		if err := p.requireKind(p.Territory.Center, KindBuilding); err != nil {
			return err
		}
	}
	return nil
}

func (p *Profile) requireKind(code string, kind EntityKind) error {
	e, ok := p.Entity(code)
	if !ok {
		return &ConfigError{Profile: p.Name, Code: code, Reason: "no catalog entry", Err: ErrUnknownEntity}
	}
	if e.Kind != kind {
		return &ConfigError{Profile: p.Name, Code: code, Reason: fmt.Sprintf("expected %s, catalog says %s", kind, e.Kind)}
	}
	return nil
}
