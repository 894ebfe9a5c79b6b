package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"sounder-sim/internal/config"
)

// Axis identifies one of the two speaker rotation axes.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
)

// Angle is the cumulative speaker orientation in degrees.
type Angle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CameraStatus is the reported status of one camera. Actions from CAMERA commands
// are stored verbatim, so any string is possible.
type CameraStatus string

const (
	CameraOnline  CameraStatus = "online"
	CameraOffline CameraStatus = "offline"
)

// State is the observable device model. The JSON shape is what frontends consume.
type State struct {
	SpeakerAngle Angle                   `json:"speaker_angle"`
	TargetCount  int                     `json:"target_count"`
	DangerLevel  string                  `json:"danger_level"`
	Cameras      map[string]CameraStatus `json:"cameras"`
}

// InitialState returns the power-on state.
func InitialState() State {
	return State{
		DangerLevel: "low",
		Cameras: map[string]CameraStatus{
			"main": CameraOnline,
			"side": CameraOnline,
			"rear": CameraOffline,
		},
	}
}

// StateFromConfig builds the power-on state from the device configuration.
func StateFromConfig(cfg config.DeviceConfig) State {
	st := State{
		TargetCount: cfg.TargetCount,
		DangerLevel: cfg.DangerLevel,
		Cameras:     make(map[string]CameraStatus, len(cfg.Cameras)),
	}
	for _, c := range cfg.Cameras {
		st.Cameras[c.ID] = CameraStatus(c.Status)
	}
	return st
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Cameras = make(map[string]CameraStatus, len(s.Cameras))
	for k, v := range s.Cameras {
		c.Cameras[k] = v
	}
	return c
}

// CameraIDs returns the camera ids in sorted order.
func (s State) CameraIDs() []string {
	ids := make([]string, 0, len(s.Cameras))
	for id := range s.Cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Encode returns the JSON form without HTML escaping and without a trailing newline.
func (s State) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ParseState decodes a JSON state document.
func ParseState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

// Store owns the device state. All access goes through Apply and Snapshot.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store starting at initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.Clone()}
}

// Snapshot returns an internally consistent copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Apply performs the mutation described by cmd and returns the response.
// Only Rotate, Reset and SetCamera mutate; any other command is rejected.
func (s *Store) Apply(cmd Command) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c := cmd.(type) {
	case Rotate:
		var cur float64
		switch c.Axis {
		case AxisX:
			s.state.SpeakerAngle.X += c.Delta
			cur = s.state.SpeakerAngle.X
		case AxisY:
			s.state.SpeakerAngle.Y += c.Delta
			cur = s.state.SpeakerAngle.Y
		default:
			return Errorf("unknown axis %q", c.Axis)
		}
		return Successf("%s axis adjusted by %s°, current angle: %s°", c.Axis, formatDegrees(c.Delta), formatDegrees(cur))
	case Reset:
		s.state.SpeakerAngle = Angle{}
		return Successf("device reset to initial position")
	case SetCamera:
		if _, ok := s.state.Cameras[c.ID]; !ok {
			return Errorf(msgMalformedCamera)
		}
		s.state.Cameras[c.ID] = CameraStatus(c.Action)
		return Successf("camera %s set to %s", c.ID, c.Action)
	}
	return Errorf("command %T does not mutate state", cmd)
}
