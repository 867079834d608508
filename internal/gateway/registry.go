package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor creates a Gateway from settings.
// Implementations register themselves with the registry using Register().
type Constructor func(s Settings) (Gateway, error)

// registry maps gateway types to their constructors
var (
	registry      = make(map[Type]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a gateway implementation constructor.
// This is called from init() functions in implementation packages (rest, cli).
//
// Example:
//
//	func init() {
//	    gateway.Register(gateway.TypeREST, func(s gateway.Settings) (gateway.Gateway, error) {
//	        return New(s)
//	    })
//	}
func Register(t Type, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("gateway: Register constructor is nil for type %s", t))
	}

	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("gateway: Register called twice for type %s", t))
	}

	registry[t] = constructor
}

// getConstructor retrieves the constructor for a gateway type.
// Returns nil if the type is not registered.
func getConstructor(t Type) Constructor {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return registry[t]
}

// IsRegistered returns true if a constructor is registered for the given type.
func IsRegistered(t Type) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[t]
	return exists
}

// RegisteredTypes returns all registered gateway types, sorted.
func RegisteredTypes() []Type {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
