package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shelftrack/internal/tag"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a real engine through a sequence of sensor steps and
// assert on the durable records and presence state that result.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Readers declares the registry, keyed by reader identity.
	Readers map[string]ReaderDef `yaml:"readers"`

	// Steps is the ordered sequence of sensor events and clock movements.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// ReaderDef declares one reader in the scenario topology.
type ReaderDef struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Detect submits a presence event (detected=true).
	Detect *SensorStep `yaml:"detect,omitempty"`

	// Vanish submits an explicit absence event (detected=false).
	Vanish *SensorStep `yaml:"vanish,omitempty"`

	// Advance moves the manual clock forward by a Go duration ("6s").
	Advance string `yaml:"advance,omitempty"`

	// Sweep runs one expiry sweep pass.
	Sweep bool `yaml:"sweep,omitempty"`

	// Connect reports a reader connectivity change.
	Connect *ConnectStep `yaml:"connect,omitempty"`
}

// SensorStep names the reader and key of a detection or absence event.
type SensorStep struct {
	Reader string `yaml:"reader"`
	Key    string `yaml:"key"`
	Kind   string `yaml:"kind"`
}

// ConnectStep reports reader liveness.
type ConnectStep struct {
	Reader    string `yaml:"reader"`
	Connected bool   `yaml:"connected"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of item_status, log_count, presence.
	Type string `yaml:"type"`

	// Key is the item key (all assertion types).
	Key string `yaml:"key"`

	// Status is the expected item status (item_status).
	Status string `yaml:"status,omitempty"`

	// Changed and Observed are expected audit log entry counts (log_count).
	Changed  int `yaml:"changed,omitempty"`
	Observed int `yaml:"observed,omitempty"`

	// Kind and Listed check the presence tracker (presence).
	Kind   string `yaml:"kind,omitempty"`
	Listed bool   `yaml:"listed,omitempty"`
}

// Assertion type constants.
const (
	AssertItemStatus = "item_status"
	AssertLogCount   = "log_count"
	AssertPresence   = "presence"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for identity, def := range s.Readers {
		if identity == "" {
			return fmt.Errorf("readers: identity must not be empty")
		}
		if !tag.ReaderKind(def.Kind).Valid() {
			return fmt.Errorf("readers[%s]: unknown kind %q", identity, def.Kind)
		}
		if def.Name == "" {
			return fmt.Errorf("readers[%s]: name is required", identity)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	if step.Detect != nil {
		set++
		if err := validateSensorStep(index, "detect", step.Detect); err != nil {
			return err
		}
	}
	if step.Vanish != nil {
		set++
		if err := validateSensorStep(index, "vanish", step.Vanish); err != nil {
			return err
		}
	}
	if step.Advance != "" {
		set++
		d, err := time.ParseDuration(step.Advance)
		if err != nil || d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be a positive duration, got %q", index, step.Advance)
		}
	}
	if step.Sweep {
		set++
	}
	if step.Connect != nil {
		set++
		if step.Connect.Reader == "" {
			return fmt.Errorf("steps[%d].connect: reader is required", index)
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of detect, vanish, advance, sweep, connect is required", index)
	}
	return nil
}

func validateSensorStep(index int, op string, step *SensorStep) error {
	if step.Reader == "" {
		return fmt.Errorf("steps[%d].%s: reader is required", index, op)
	}
	if step.Key == "" {
		return fmt.Errorf("steps[%d].%s: key is required", index, op)
	}
	if step.Kind == "" {
		return fmt.Errorf("steps[%d].%s: kind is required", index, op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertItemStatus:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for item_status", index)
		}
		if !tag.Status(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertLogCount:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for log_count", index)
		}
		if a.Changed < 0 || a.Observed < 0 {
			return fmt.Errorf("assertions[%d]: counts must be non-negative", index)
		}
	case AssertPresence:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for presence", index)
		}
		if !tag.ReaderKind(a.Kind).Valid() {
			return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
