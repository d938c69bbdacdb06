package metric

import (
	"fmt"
	"sort"

	"github.com/okian/streamrec/internal/domain/component"
)

// Factory builds a fresh metric for one algorithm from its definition.
type Factory func(def component.Definition, algorithm string) (Metric, error)

// Registry maps type tags to metric factories.
type Registry struct {
	factories map[string]Factory
}

// params are the fields shared by metric definitions.
type params struct {
	K          int        `json:"k"`
	Type       string     `json:"type"`
	Resolution Resolution `json:"resolution"`
}

// NewRegistry returns a registry holding every built-in metric.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	kinded := func(fixed Kind) Factory {
		return func(def component.Definition, algorithm string) (Metric, error) {
			var p params
			if err := def.Decode(&p); err != nil {
				return nil, err
			}
			kind := fixed
			if kind == "" {
				kind = Kind(p.Type)
			}
			return NewPrecisionOrRecall(def.Name, algorithm, kind, p.K)
		}
	}
	simple := func(ctor func(name, algorithm string, k int) Metric) Factory {
		return func(def component.Definition, algorithm string) (Metric, error) {
			var p params
			if err := def.Decode(&p); err != nil {
				return nil, err
			}
			return ctor(def.Name, algorithm, p.K), nil
		}
	}

	r.Register("PrecisionOrRecall", kinded(""))
	r.Register("Precision", kinded(Precision))
	r.Register("Recall", kinded(Recall))
	r.Register("F1", simple(func(n, a string, k int) Metric { return NewF1(n, a, k) }))
	r.Register("MeanF1", simple(func(n, a string, k int) Metric { return NewMeanF1(n, a, k) }))
	r.Register("MRR", simple(func(n, a string, k int) Metric { return NewMRR(n, a, k) }))
	r.Register("Coverage", simple(func(n, a string, k int) Metric { return NewCoverage(n, a, k) }))
	r.Register("NbRecItems", simple(func(n, a string, k int) Metric { return NewNbRecItems(n, a, k) }))
	r.Register("Runtime", func(def component.Definition, algorithm string) (Metric, error) {
		var p params
		if err := def.Decode(&p); err != nil {
			return nil, err
		}
		return NewRuntime(def.Name, algorithm, Phase(p.Type), p.Resolution)
	})
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

// Validate checks that every definition has a known type and decodes.
func (r *Registry) Validate(defs []component.Definition) error {
	_, err := r.Build(defs, "")
	return err
}

// Build instantiates one fresh metric per definition for algorithm.
func (r *Registry) Build(defs []component.Definition, algorithm string) ([]Metric, error) {
	out := make([]Metric, 0, len(defs))
	for _, def := range defs {
		f, ok := r.factories[def.Type]
		if !ok {
			return nil, fmt.Errorf("%w: metric %q", component.ErrUnknownType, def.Type)
		}
		m, err := f(def, algorithm)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", def.Name, err)
		}
		out = append(out, m)
	}
	return out, nil
}
