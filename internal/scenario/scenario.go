package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sounder-sim/internal/device"
	"sounder-sim/internal/telemetry"
)

// Script is a named, ordered list of device commands.
type Script struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Step sends Command after waiting for After since the previous step.
type Step struct {
	After   time.Duration `yaml:"after,omitempty"`
	Command string        `yaml:"command"`
	Note    string        `yaml:"note,omitempty"`
}

// Executor runs one command against the device and returns its response.
type Executor interface {
	Execute(ctx context.Context, raw, source string) (device.Response, error)
}

// Result pairs a played step with the device response.
type Result struct {
	Step     Step
	Response device.Response
}

// Load reads a YAML script definition from disk.
func Load(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Resolve returns the built-in script called nameOrPath, or loads it from
// disk when no built-in matches.
func Resolve(nameOrPath string) (*Script, error) {
	if s, ok := BuiltIn()[nameOrPath]; ok {
		return &s, nil
	}
	return Load(nameOrPath)
}

// Validate checks that every step parses as a device command.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("no steps")
	}
	var errs []error
	for i, st := range s.Steps {
		if st.After < 0 {
			errs = append(errs, fmt.Errorf("step %d: negative delay %s", i+1, st.After))
		}
		if _, err := device.Parse(st.Command); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Duration is the sum of all step delays.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, st := range s.Steps {
		d += st.After
	}
	return d
}

// Play runs the steps in order through exec. It stops between steps when
// ctx is cancelled and returns the results collected so far.
func Play(ctx context.Context, s *Script, exec Executor) ([]Result, error) {
	results := make([]Result, 0, len(s.Steps))
	for _, st := range s.Steps {
		if st.After > 0 {
			t := time.NewTimer(st.After)
			select {
			case <-ctx.Done():
				t.Stop()
				return results, ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return results, err
		}
		resp, err := exec.Execute(ctx, st.Command, telemetry.SourceScenario)
		if err != nil {
			return results, fmt.Errorf("step %q: %w", st.Command, err)
		}
		results = append(results, Result{Step: st, Response: resp})
	}
	return results, nil
}
