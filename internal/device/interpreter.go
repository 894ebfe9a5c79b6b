package device

import (
	"errors"
	"time"
)

// Interpreter turns raw command strings into responses against a Store.
type Interpreter struct {
	store     *Store
	directory Directory
	now       func() time.Time
}

// Option customizes an Interpreter.
type Option func(*Interpreter)

// WithClock overrides the clock used for TEST timestamps.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

// WithDirectory replaces the identity directory.
func WithDirectory(d Directory) Option {
	return func(i *Interpreter) { i.directory = d }
}

// NewInterpreter creates an interpreter bound to store.
func NewInterpreter(store *Store, opts ...Option) *Interpreter {
	i := &Interpreter{store: store, directory: DefaultDirectory(), now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Store exposes the underlying state owner.
func (i *Interpreter) Store() *Store { return i.store }

// Interpret parses and executes raw. Malformed input yields an ERROR response;
// a panic anywhere below is converted into one as well.
func (i *Interpreter) Interpret(raw string) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Errorf("error while processing command: %v", r)
		}
	}()

	cmd, err := Parse(raw)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return pe.Response
		}
		return Errorf("%v", err)
	}
	return i.Execute(cmd)
}

// Execute runs an already parsed command.
func (i *Interpreter) Execute(cmd Command) Response {
	switch c := cmd.(type) {
	case Identify:
		return Response{Kind: KindIdentity, Message: i.directory.Lookup(c.Token).String()}
	case Echo:
		return Response{
			Kind:    KindTestResponse,
			Message: "received test data '" + c.Payload + "' - time: " + i.now().Format("15:04:05"),
		}
	case StatusQuery:
		data, err := i.store.Snapshot().Encode()
		if err != nil {
			return Errorf("encode status: %v", err)
		}
		return Response{Kind: KindStatus, Message: string(data)}
	}
	return i.store.Apply(cmd)
}
