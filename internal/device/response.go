package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a response on the wire.
type Kind string

const (
	KindSuccess      Kind = "SUCCESS"
	KindError        Kind = "ERROR"
	KindIdentity     Kind = "IDENTITY"
	KindTestResponse Kind = "TEST_RESPONSE"
	KindStatus       Kind = "STATUS"
	KindSystem       Kind = "SYSTEM"
)

func (k Kind) valid() bool {
	switch k {
	case KindSuccess, KindError, KindIdentity, KindTestResponse, KindStatus, KindSystem:
		return true
	}
	return false
}

// Response is the outcome of interpreting one command.
type Response struct {
	Kind    Kind
	Message string
}

// String renders the KIND:message wire form.
func (r Response) String() string {
	return string(r.Kind) + ":" + r.Message
}

// IsError reports whether r is an ERROR response.
func (r Response) IsError() bool { return r.Kind == KindError }

// Successf builds a SUCCESS response.
func Successf(format string, args ...any) Response {
	return Response{Kind: KindSuccess, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds an ERROR response.
func Errorf(format string, args ...any) Response {
	return Response{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

// ConnectedNotice is published once the device is subscribed and ready.
func ConnectedNotice() Response {
	return Response{Kind: KindSystem, Message: "connected, ready for commands"}
}

// ParseResponse splits a KIND:message wire string.
func ParseResponse(raw string) (Response, error) {
	kind, msg, ok := strings.Cut(raw, ":")
	if !ok {
		return Response{}, fmt.Errorf("response %q has no kind prefix", raw)
	}
	k := Kind(kind)
	if !k.valid() {
		return Response{}, fmt.Errorf("unknown response kind %q", kind)
	}
	return Response{Kind: k, Message: msg}, nil
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
