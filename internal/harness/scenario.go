package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// Scenario is one scripted session.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the session id
	// and the golden file name.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Rules is CUE source unified with the default rules. Empty means the
	// defaults.
	Rules string `yaml:"rules,omitempty"`

	Create     CreateStep  `yaml:"create"`
	Ticks      []TickStep  `yaml:"ticks"`
	Assertions []Assertion `yaml:"assertions"`
}

// CreateStep opens the session.
type CreateStep struct {
	Actor  string               `yaml:"actor"`
	Level  int                  `yaml:"level,omitempty"`
	Items  map[string]int       `yaml:"items,omitempty"`
	Config intent.SessionConfig `yaml:"config"`
}

// TickStep is one solver beat and the intents submitted before it.
type TickStep struct {
	// Advance moves the fake wall clock before submitting, so deadlines
	// can expire.
	Advance time.Duration `yaml:"advance,omitempty"`

	Submit []SubmitStep  `yaml:"submit,omitempty"`
	Expect []Expectation `yaml:"expect,omitempty"`
}

// SubmitStep is one intent as the dispatcher would send it.
type SubmitStep struct {
	Actor string `yaml:"actor"`

	// As is the authenticated principal. Defaults to Actor.
	As string `yaml:"as,omitempty"`

	Kind      intent.Kind    `yaml:"kind"`
	Direction string         `yaml:"direction,omitempty"`
	Target    string         `yaml:"target,omitempty"`
	Item      string         `yaml:"item,omitempty"`
	Level     int            `yaml:"level,omitempty"`
	Items     map[string]int `yaml:"items,omitempty"`

	// Reject, when set, expects the submission to be refused at queue time
	// with an error containing this text.
	Reject string `yaml:"reject,omitempty"`
}

// Expectation checks the settlement of one seq in the tick it belongs to.
type Expectation struct {
	Seq    int64             `yaml:"seq"`
	Status settlement.Status `yaml:"status"`
	Reason string            `yaml:"reason,omitempty"`
}

// Assertion validates the final state or the whole trace.
type Assertion struct {
	Type string `yaml:"type"`

	// entity
	Entity string     `yaml:"entity,omitempty"`
	HP     *int       `yaml:"hp,omitempty"`
	Pos    *world.Pos `yaml:"pos,omitempty"`
	Alive  *bool      `yaml:"alive,omitempty"`
	XP     *int       `yaml:"xp,omitempty"`
	Gold   *int       `yaml:"gold,omitempty"`

	// session
	Status world.Status    `yaml:"status,omitempty"`
	Result world.Result    `yaml:"result,omitempty"`
	Duel   world.DuelState `yaml:"duel,omitempty"`
	Winner string          `yaml:"winner,omitempty"`

	// event_count, settled_count
	Event   string            `yaml:"event,omitempty"`
	Outcome settlement.Status `yaml:"outcome,omitempty"`
	Count   int               `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEntity       = "entity"
	AssertSession      = "session"
	AssertEventCount   = "event_count"
	AssertSettledCount = "settled_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos do not silently pass.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Create.Actor == "" {
		return fmt.Errorf("create.actor is required")
	}
	if !s.Create.Config.Kind.Valid() {
		return fmt.Errorf("create.config.kind %q is not a session kind", s.Create.Config.Kind)
	}
	if s.Create.Config.Seed == 0 {
		return fmt.Errorf("create.config.seed is required for a reproducible run")
	}
	if len(s.Ticks) == 0 {
		return fmt.Errorf("at least one tick is required")
	}
	for i, step := range s.Ticks {
		if step.Advance < 0 {
			return fmt.Errorf("ticks[%d]: advance must not be negative", i)
		}
		for j, sub := range step.Submit {
			if sub.Actor == "" {
				return fmt.Errorf("ticks[%d].submit[%d]: actor is required", i, j)
			}
			if sub.Kind == "" {
				return fmt.Errorf("ticks[%d].submit[%d]: kind is required", i, j)
			}
		}
		for j, exp := range step.Expect {
			if exp.Seq <= 0 {
				return fmt.Errorf("ticks[%d].expect[%d]: seq must be positive", i, j)
			}
			if exp.Status == "" {
				return fmt.Errorf("ticks[%d].expect[%d]: status is required", i, j)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	switch a.Type {
	case AssertEntity:
		if a.Entity == "" {
			return fmt.Errorf("assertions[%d]: entity is required for entity", index)
		}
	case AssertSession:
		if a.Status == "" && a.Result == "" && a.Duel == "" && a.Winner == "" {
			return fmt.Errorf("assertions[%d]: session needs at least one of status, result, duel, winner", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
	case AssertSettledCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for settled_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
