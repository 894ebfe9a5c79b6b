package device

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Command is one parsed device command. The set of implementations is closed.
type Command interface {
	command()
}

// Rotate adds Delta degrees to one speaker axis.
type Rotate struct {
	Axis  Axis
	Delta float64
}

// Identify looks up a person by ID token.
type Identify struct{ Token string }

// Echo returns its payload; used by frontends to test the round trip.
type Echo struct{ Payload string }

// StatusQuery requests the full device state.
type StatusQuery struct{}

// Reset returns the speaker to its initial orientation.
type Reset struct{}

// SetCamera stores Action as the status of camera ID.
type SetCamera struct {
	ID     string
	Action string
}

func (Rotate) command()      {}
func (Identify) command()    {}
func (Echo) command()        {}
func (StatusQuery) command() {}
func (Reset) command()       {}
func (SetCamera) command()   {}

// ErrUnknownCommand is wrapped by ParseError when no prefix matches.
var ErrUnknownCommand = errors.New("unknown command format")

// ErrMalformedCommand is wrapped by ParseError when a known prefix has a bad payload.
var ErrMalformedCommand = errors.New("malformed command")

const (
	msgMalformedCamera = "malformed camera command"
	msgInvalidUTF8     = "malformed command: not valid UTF-8"
)

// ParseError describes why a raw command could not be parsed. Response gives the
// ERROR reply sent back to the caller.
type ParseError struct {
	Raw      string
	Response Response
	err      error
}

func (e *ParseError) Error() string { return e.Response.Message }

func (e *ParseError) Unwrap() error { return e.err }

const (
	prefixX      = "X:"
	prefixY      = "Y:"
	prefixI      = "I:"
	prefixTest   = "TEST:"
	prefixStatus = "STATUS:"
	prefixReset  = "RESET:"
	prefixCamera = "CAMERA:"
)

// Parse turns a raw command string into a Command. Prefixes are case sensitive
// and include the colon. Input that is not valid UTF-8 is malformed, since
// payloads end up in JSON status replies.
func Parse(raw string) (Command, error) {
	if !utf8.ValidString(raw) {
		return nil, &ParseError{Raw: raw, Response: Errorf(msgInvalidUTF8), err: ErrMalformedCommand}
	}
	switch {
	case strings.HasPrefix(raw, prefixX):
		return parseRotate(raw, AxisX)
	case strings.HasPrefix(raw, prefixY):
		return parseRotate(raw, AxisY)
	case strings.HasPrefix(raw, prefixI):
		return Identify{Token: field(raw, 1)}, nil
	case strings.HasPrefix(raw, prefixTest):
		_, payload, _ := strings.Cut(raw, ":")
		return Echo{Payload: payload}, nil
	case strings.HasPrefix(raw, prefixStatus):
		return StatusQuery{}, nil
	case strings.HasPrefix(raw, prefixReset):
		return Reset{}, nil
	case strings.HasPrefix(raw, prefixCamera):
		parts := strings.Split(raw, ":")
		if len(parts) < 3 {
			return nil, &ParseError{Raw: raw, Response: Errorf(msgMalformedCamera), err: ErrMalformedCommand}
		}
		return SetCamera{ID: parts[1], Action: parts[2]}, nil
	}
	return nil, &ParseError{
		Raw:      raw,
		Response: Errorf("%s: %s", ErrUnknownCommand, raw),
		err:      ErrUnknownCommand,
	}
}

func parseRotate(raw string, axis Axis) (Command, error) {
	s := strings.TrimSpace(field(raw, 1))
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, &ParseError{
			Raw:      raw,
			Response: Errorf("invalid %s angle %q", axis, s),
			err:      fmt.Errorf("%w: %s", ErrMalformedCommand, raw),
		}
	}
	return Rotate{Axis: axis, Delta: d}, nil
}

// field returns the i-th colon separated field, or "" when absent.
func field(raw string, i int) string {
	parts := strings.Split(raw, ":")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// Format renders cmd back into its wire form.
func Format(cmd Command) string {
	switch c := cmd.(type) {
	case Rotate:
		return string(c.Axis) + ":" + formatDegrees(c.Delta)
	case Identify:
		return prefixI + c.Token
	case Echo:
		return prefixTest + c.Payload
	case StatusQuery:
		return prefixStatus
	case Reset:
		return prefixReset
	case SetCamera:
		return prefixCamera + c.ID + ":" + c.Action
	}
	return ""
}
