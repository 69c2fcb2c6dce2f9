package toolcall

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON form of a Command, used in API responses and for
// storing the commands attached to an assistant message.
type Envelope struct {
	Type        string  `json:"type"`
	ChartType   string  `json:"chart_type,omitempty"`
	TimeRange   string  `json:"time_range,omitempty"`
	Metric      string  `json:"metric,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ToEnvelope converts a command into its wire form.
func ToEnvelope(cmd Command) Envelope {
	switch c := cmd.(type) {
	case ShowChart:
		return Envelope{
			Type:        ToolShowChart,
			ChartType:   string(c.ChartType),
			TimeRange:   string(c.TimeRange),
			Metric:      string(c.Metric),
			Title:       c.Title,
			Description: c.Description,
		}
	case ShowWorkoutHistory:
		return Envelope{Type: ToolShowWorkoutHistory, TimeRange: string(c.TimeRange)}
	default:
		return Envelope{Type: ToolShowActivity}
	}
}

// Command converts the wire form back, applying the usual defaults.
func (e Envelope) Command() (Command, error) {
	cmd := build(e.Type, func(key string) (string, bool) {
		switch key {
		case "chartType":
			return e.ChartType, e.ChartType != ""
		case "timeRange":
			return e.TimeRange, e.TimeRange != ""
		case "metric":
			return e.Metric, e.Metric != ""
		case "title":
			if e.Title == nil {
				return "", false
			}
			return *e.Title, true
		case "description":
			if e.Description == nil {
				return "", false
			}
			return *e.Description, true
		}
		return "", false
	})
	if cmd == nil {
		return nil, fmt.Errorf("unknown command type %q", e.Type)
	}
	return cmd, nil
}

// Envelopes converts a command list for JSON output. A nil list stays nil.
func Envelopes(cmds []Command) []Envelope {
	if cmds == nil {
		return nil
	}
	out := make([]Envelope, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, ToEnvelope(cmd))
	}
	return out
}

// MarshalCommands encodes commands for storage.
func MarshalCommands(cmds []Command) ([]byte, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	return json.Marshal(Envelopes(cmds))
}

// UnmarshalCommands decodes stored commands, skipping unknown types.
func UnmarshalCommands(data []byte) ([]Command, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var envs []Envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decode tool commands: %w", err)
	}
	cmds := make([]Command, 0, len(envs))
	for _, env := range envs {
		cmd, err := env.Command()
		if err != nil {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
