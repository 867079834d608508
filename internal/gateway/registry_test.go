package gateway

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mockGateway is a mock Gateway implementation for testing
type mockGateway struct {
	name     Type
	settings Settings
	fail     error
}

func (m *mockGateway) Name() Type { return m.name }
func (m *mockGateway) CreateOrUpdateChild(ctx context.Context, parentID, space, title string, payload []byte) (string, error) {
	return "42", m.fail
}
func (m *mockGateway) UpdateByID(ctx context.Context, pageID, title string, payload []byte) error {
	return m.fail
}
func (m *mockGateway) ListChildren(ctx context.Context, parentID string, opts ListOptions) (Page, error) {
	return Page{}, m.fail
}
func (m *mockGateway) Delete(ctx context.Context, pageID string) error { return m.fail }

// newMockGateway creates a constructor for mock gateways
func newMockGateway(name Type) Constructor {
	return func(s Settings) (Gateway, error) {
		return &mockGateway{name: name, settings: s}, nil
	}
}

// isolateRegistry gives the test an empty registry and restores the
// process-wide one, including the rest and cli backends, afterwards.
func isolateRegistry(t *testing.T) {
	t.Helper()

	registryMutex.Lock()
	saved := registry
	registry = make(map[Type]Constructor)
	registryMutex.Unlock()

	t.Cleanup(func() {
		registryMutex.Lock()
		registry = saved
		registryMutex.Unlock()
	})
}

func TestRegister(t *testing.T) {
	isolateRegistry(t)
	typeName := Type("mock")

	Register(typeName, newMockGateway(typeName))

	if !IsRegistered(typeName) {
		t.Error("Expected type to be registered")
	}

	constructor := getConstructor(typeName)
	if constructor == nil {
		t.Fatal("Expected to get constructor for registered type")
	}

	gw, err := constructor(Settings{URL: "https://wiki.example.com"})
	if err != nil {
		t.Fatalf("Constructor failed: %v", err)
	}
	if gw.Name() != typeName {
		t.Errorf("Expected gateway name '%s', got '%s'", typeName, gw.Name())
	}
}

func TestRegisterPanicsOnNil(t *testing.T) {
	isolateRegistry(t)
	typeName := Type("mock")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when registering nil constructor")
		}
	}()

	Register(typeName, nil)
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	isolateRegistry(t)
	typeName := Type("mock")

	Register(typeName, newMockGateway(typeName))

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when registering duplicate type")
		}
	}()

	Register(typeName, newMockGateway(typeName))
}

func TestRegisteredTypesSorted(t *testing.T) {
	isolateRegistry(t)
	for _, name := range []Type{"wiki-b", "wiki-c", "wiki-a"} {
		Register(name, newMockGateway(name))
	}

	if diff := cmp.Diff([]Type{"wiki-a", "wiki-b", "wiki-c"}, RegisteredTypes()); diff != "" {
		t.Errorf("RegisteredTypes (-want +got):\n%s", diff)
	}
}

func TestIsolatedRegistryStartsEmpty(t *testing.T) {
	isolateRegistry(t)

	if types := RegisteredTypes(); len(types) != 0 {
		t.Errorf("expected no registered types, got %v", types)
	}
	if IsRegistered("mock") {
		t.Error("mock registered in an empty registry")
	}
}

func TestFactoryCreate(t *testing.T) {
	isolateRegistry(t)
	typeName := Type("mock")
	Register(typeName, newMockGateway(typeName))

	tests := []struct {
		name        string
		factory     *Factory
		settings    Settings
		wantErr     error
		wantType    Type
		wantTimeout bool
	}{
		{
			name:        "explicit type",
			factory:     NewFactory(),
			settings:    Settings{Type: typeName},
			wantType:    typeName,
			wantTimeout: true,
		},
		{
			name:        "default type",
			factory:     NewFactory(WithDefaultType(typeName)),
			settings:    Settings{},
			wantType:    typeName,
			wantTimeout: true,
		},
		{
			name:     "unregistered type",
			factory:  NewFactory(),
			settings: Settings{Type: "does-not-exist"},
			wantErr:  ErrNotRegistered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := tt.factory.Create(tt.settings)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if gw.Name() != tt.wantType {
				t.Errorf("Expected %s, got %s", tt.wantType, gw.Name())
			}
			mock := gw.(*mockGateway)
			if tt.wantTimeout && mock.settings.Timeout != DefaultTimeout {
				t.Errorf("Expected default timeout, got %v", mock.settings.Timeout)
			}
		})
	}
}

func TestFactoryOperationLog(t *testing.T) {
	isolateRegistry(t)
	typeName := Type("mock")
	Register(typeName, func(s Settings) (Gateway, error) {
		return &mockGateway{name: typeName, fail: NewRemoteError(OpDelete, "7", 404, ErrNotFound)}, nil
	})

	var buf bytes.Buffer
	gw, err := NewFactory(WithOperationLog(log.New(&buf, "", 0))).Create(Settings{Type: typeName})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err = gw.Delete(context.Background(), "7")
	if !IsNotFound(err) {
		t.Fatalf("Expected not-found error to pass through, got %v", err)
	}
	if !strings.Contains(buf.String(), "delete 7 failed") {
		t.Errorf("Expected failed delete in operation log, got %q", buf.String())
	}
}
