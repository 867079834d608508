package gateway

import (
	"fmt"
	"log"
	"time"
)

// Factory creates Gateway instances from settings chosen at startup.
type Factory struct {
	// defaultType is used when Settings.Type is empty
	defaultType Type

	// timeout is applied when Settings.Timeout is zero
	timeout time.Duration

	// opLog receives one line per gateway call when set
	opLog *log.Logger
}

// NewFactory creates a new gateway factory with the specified options.
//
// Default behavior:
//   - REST backend when the type is not set
//   - DefaultTimeout per operation
//   - No operation log
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		defaultType: TypeREST,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FactoryOption configures the factory
type FactoryOption func(*Factory)

// WithDefaultType sets the backend used when Settings.Type is empty
func WithDefaultType(t Type) FactoryOption {
	return func(f *Factory) {
		f.defaultType = t
	}
}

// WithTimeout sets the per-operation timeout applied when Settings.Timeout
// is zero
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) {
		f.timeout = d
	}
}

// WithOperationLog logs every gateway call and its outcome to logger
func WithOperationLog(logger *log.Logger) FactoryOption {
	return func(f *Factory) {
		f.opLog = logger
	}
}

// Create builds the gateway selected by s.Type using the registry.
// Implementations must register themselves via Register() in their init()
// functions.
func (f *Factory) Create(s Settings) (Gateway, error) {
	if s.Type == "" {
		s.Type = f.defaultType
	}
	if s.Timeout == 0 {
		s.Timeout = f.timeout
	}

	constructor := getConstructor(s.Type)
	if constructor == nil {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrNotRegistered, s.Type, RegisteredTypes())
	}

	gw, err := constructor(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s gateway: %w", s.Type, err)
	}

	if f.opLog != nil {
		gw = &loggingGateway{next: gw, logger: f.opLog}
	}
	return gw, nil
}
