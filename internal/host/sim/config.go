package sim

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ActionType defines how the simulated model reacts to a sent prompt.
type ActionType string

const (
	ActionRespond  ActionType = "respond"   // Respond with Action.Response
	ActionEcho     ActionType = "echo"      // Respond with the prompt itself
	ActionSilent   ActionType = "silent"    // Finish responding with no response text
	ActionHang     ActionType = "hang"      // Stay busy until stopped
	ActionFailSend ActionType = "fail_send" // Refuse every send with Action.SendReason
)

// Config holds the complete simulator configuration.
type Config struct {
	Timing    TimingConfig `yaml:"timing"`
	Behaviors []Behavior   `yaml:"behaviors"`
	Default   Behavior     `yaml:"default"`

	// NoInput makes InsertText report a missing input surface.
	NoInput bool `yaml:"no_input"`
}

// TimingConfig holds simulated delays.
type TimingConfig struct {
	ResponseDelay time.Duration `yaml:"response_delay"`
}

// Behavior defines how the simulator responds to a prompt pattern.
type Behavior struct {
	Match  string `yaml:"match"`
	Type   string `yaml:"type"` // "contains" or "regex"
	Action Action `yaml:"action"`
}

// Action defines the simulator's response.
type Action struct {
	Type     ActionType    `yaml:"type"`
	Delay    time.Duration `yaml:"delay"`
	Response string        `yaml:"response"`

	// SendFailures fails the first N sends of a matching prompt with
	// SendReason before accepting it.
	SendFailures int    `yaml:"send_failures"`
	SendReason   string `yaml:"send_reason"`
}

// NewDefaultConfig returns a simulator that answers every prompt after a
// short delay.
func NewDefaultConfig() Config {
	return Config{
		Timing: TimingConfig{
			ResponseDelay: 200 * time.Millisecond,
		},
		Default: Behavior{
			Action: Action{Type: ActionRespond},
		},
	}
}

// LoadConfig loads simulator configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	config := NewDefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}
