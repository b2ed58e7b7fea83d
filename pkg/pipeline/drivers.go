package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kandev/agui-gateway/internal/common/logger"
)

// Factory constructs a pipeline driver
type Factory func(log *logger.Logger) (Pipeline, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register makes a driver selectable by name. Drivers register from their
// init functions; registering the same name twice panics.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if _, exists := drivers[name]; exists {
		panic(fmt.Sprintf("pipeline: driver %q registered twice", name))
	}
	drivers[name] = factory
}

// New constructs the named driver
func New(name string, log *logger.Logger) (Pipeline, error) {
	driversMu.RLock()
	factory, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown pipeline driver %q (registered: %v)", name, Drivers())
	}
	return factory(log)
}

// Drivers returns the registered driver names, sorted
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
