package bundle

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded bundles.
type Registry struct {
	sync.RWMutex
	bundles  map[string]*Bundle   // name -> bundle
	byTarget map[string][]*Bundle // target -> bundles
	logger   *zap.Logger
}

// NewRegistry creates a new bundle registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		bundles:  make(map[string]*Bundle),
		byTarget: make(map[string][]*Bundle),
		logger:   logger.With(zap.String("component", "bundle-registry")),
	}
}

// Register adds a bundle to the registry.
func (r *Registry) Register(b *Bundle) error {
	r.Lock()
	defer r.Unlock()

	name := b.Manifest.Name

	if _, exists := r.bundles[name]; exists {
		return &AlreadyRegisteredError{BundleName: name}
	}

	r.bundles[name] = b

	target := b.Manifest.Target
	r.byTarget[target] = append(r.byTarget[target], b)

	r.logger.Info("Bundle registered",
		zap.String("name", name),
		zap.String("target", target),
	)

	return nil
}

// Get retrieves a bundle by name.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.RLock()
	defer r.RUnlock()

	b, ok := r.bundles[name]
	return b, ok
}

// LookupByTarget finds bundles built for a target.
func (r *Registry) LookupByTarget(target string) []*Bundle {
	r.RLock()
	defer r.RUnlock()

	bundles := r.byTarget[target]
	result := make([]*Bundle, len(bundles))
	copy(result, bundles)
	return result
}

// List returns all registered bundles sorted by name.
func (r *Registry) List() []*Bundle {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Bundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Unregister removes a bundle from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	b, ok := r.bundles[name]
	if !ok {
		return
	}

	target := b.Manifest.Target
	bundles := r.byTarget[target]
	for i, other := range bundles {
		if other.Manifest.Name == name {
			r.byTarget[target] = append(bundles[:i], bundles[i+1:]...)
			break
		}
	}

	delete(r.bundles, name)

	r.logger.Info("Bundle unregistered", zap.String("name", name))
}

// Count returns the number of registered bundles.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.bundles)
}
