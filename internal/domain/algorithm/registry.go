package algorithm

import (
	"fmt"
	"sort"

	"github.com/okian/streamrec/internal/domain/component"
)

// Factory builds a fresh recommender from its definition.
type Factory func(def component.Definition) (Recommender, error)

// Registry maps type tags to recommender factories.
type Registry struct {
	factories map[string]Factory
}

// settings are the wrapper fields every algorithm definition may carry.
type settings struct {
	TrainingInterval int  `json:"trainingInterval"`
	WholeUserHistory bool `json:"wholeUserHistory"`
}

// NewRegistry returns a registry holding the baseline algorithms.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("MostPopular", newMostPopular)
	r.Register("RecentlyPopular", newRecentlyPopular)
	r.Register("MostRecent", newMostRecent)
	r.Register("RecentlyClicked", newRecentlyClicked)
	r.Register("Random", newRandom)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(tag string, f Factory) {
	r.factories[tag] = f
}

// Types returns the registered tags in order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// CheckNames fails when two definitions share a display name.
func CheckNames(defs []component.Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return nil
}

// Build instantiates one algorithm per definition.
func (r *Registry) Build(defs []component.Definition) ([]*Algorithm, error) {
	if err := CheckNames(defs); err != nil {
		return nil, err
	}
	out := make([]*Algorithm, 0, len(defs))
	for _, def := range defs {
		f, ok := r.factories[def.Type]
		if !ok {
			return nil, fmt.Errorf("%w: algorithm %q", component.ErrUnknownType, def.Type)
		}
		var s settings
		if err := def.Decode(&s); err != nil {
			return nil, err
		}
		rec, err := f(def)
		if err != nil {
			return nil, fmt.Errorf("algorithm %s: %w", def.Name, err)
		}
		out = append(out, New(def.Name, rec,
			WithTrainingInterval(s.TrainingInterval),
			WithWholeUserHistory(s.WholeUserHistory),
		))
	}
	return out, nil
}
