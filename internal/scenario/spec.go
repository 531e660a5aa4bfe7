package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/colony-brain/internal/agent/behavior"
	"example.com/colony-brain/internal/world"
	"gopkg.in/yaml.v3"
)

// Spec describes a colony run: which tree file drives the animals, the
// world they live in and the animals themselves.
type Spec struct {
	Trees       string        `yaml:"trees"`
	Main        string        `yaml:"main"`
	World       world.Config  `yaml:"world"`
	EatDuration time.Duration `yaml:"eat_duration"`
	HungerLimit int           `yaml:"hunger_limit"`
	Animals     []AnimalSpec  `yaml:"animals"`
}

// AnimalSpec places one animal. Tree picks a tree other than Main.
type AnimalSpec struct {
	ID         string         `yaml:"id"`
	Tree       string         `yaml:"tree"`
	Position   world.Point    `yaml:"position"`
	InShed     bool           `yaml:"in_shed"`
	Blackboard map[string]any `yaml:"blackboard"`
}

const (
	defaultEatDuration = 2 * time.Second
	defaultHungerLimit = 300
)

// Load reads a scenario file.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(string(data))
}

// Parse converts the scenario YAML into a Spec with defaults applied.
func Parse(raw string) (Spec, error) {
	var spec Spec
	if strings.TrimSpace(raw) == "" {
		return spec, errors.New("scenario config is empty")
	}
	if err := yaml.Unmarshal([]byte(raw), &spec); err != nil {
		return spec, fmt.Errorf("parse scenario config: %w", err)
	}
	spec.applyDefaults()
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

func (s *Spec) applyDefaults() {
	if s.World.Width == 0 && s.World.Height == 0 {
		seed := s.World.Seed
		s.World = world.DefaultConfig()
		if seed != 0 {
			s.World.Seed = seed
		}
	}
	if s.World.DayLength == 0 {
		s.World.DayLength = world.DefaultConfig().DayLength
	}
	if s.EatDuration == 0 {
		s.EatDuration = defaultEatDuration
	}
	if s.HungerLimit == 0 {
		s.HungerLimit = defaultHungerLimit
	}
}

// Validate ensures required fields are populated.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Trees) == "" {
		return errors.New("scenario trees file is required")
	}
	if err := s.World.Validate(); err != nil {
		return fmt.Errorf("scenario world: %w", err)
	}
	if len(s.Animals) == 0 {
		return errors.New("scenario needs at least one animal")
	}
	if s.EatDuration < 0 || s.HungerLimit < 0 {
		return errors.New("eat duration and hunger limit must not be negative")
	}
	bounds := world.Rect{Max: world.Point{X: s.World.Width - 1, Y: s.World.Height - 1}}
	seen := make(map[string]bool, len(s.Animals))
	for i, a := range s.Animals {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			return fmt.Errorf("animal %d has no id", i)
		}
		if strings.ContainsAny(id, "/+#") {
			return fmt.Errorf("animal id %q contains MQTT topic characters", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate animal id %q", id)
		}
		seen[id] = true
		if !bounds.Contains(a.Position) {
			return fmt.Errorf("animal %q starts outside the world at %s", id, a.Position)
		}
		if a.InShed && a.Position != s.World.Shed {
			return fmt.Errorf("animal %q is in the shed but not at %s", id, s.World.Shed)
		}
	}
	return nil
}

// TreesPath resolves the trees file relative to the scenario's directory.
func (s Spec) TreesPath(scenarioPath string) string {
	if filepath.IsAbs(s.Trees) {
		return s.Trees
	}
	return filepath.Join(filepath.Dir(scenarioPath), s.Trees)
}

// LoadTrees parses the trees file as XML or YAML by extension. A Main set in
// the scenario overrides the file's main tree.
func (s Spec) LoadTrees(scenarioPath string) (behavior.Definition, error) {
	path := s.TreesPath(scenarioPath)
	f, err := os.Open(path)
	if err != nil {
		return behavior.Definition{}, fmt.Errorf("open trees file: %w", err)
	}
	defer f.Close()

	var def behavior.Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		def, err = behavior.ParseXML(f)
	case ".yaml", ".yml":
		def, err = behavior.ParseYAML(f)
	default:
		return behavior.Definition{}, fmt.Errorf("trees file %s: unsupported extension", path)
	}
	if err != nil {
		return behavior.Definition{}, fmt.Errorf("trees file %s: %w", path, err)
	}
	if s.Main != "" {
		def.Main = s.Main
	}
	return def, nil
}
