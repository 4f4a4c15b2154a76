package scenario

import (
	"fmt"
	"strings"

	"github.com/gocircum/obfsmeter/core/obfuscation"
)

// Factory constructs a fresh transform of one kind.
type Factory func() (obfuscation.Transform, error)

// Catalogue resolves scenario names into Scenarios. It knows the built-in
// single-transform scenarios and any composite scenarios defined on top.
type Catalogue struct {
	factories map[obfuscation.Kind]Factory
	custom    map[string][]obfuscation.Kind
	order     []string
}

// NewCatalogue creates a Catalogue using the given transform factories.
func NewCatalogue(factories map[obfuscation.Kind]Factory) *Catalogue {
	f := make(map[obfuscation.Kind]Factory, len(factories))
	for k, v := range factories {
		f[k] = v
	}
	return &Catalogue{
		factories: f,
		custom:    make(map[string][]obfuscation.Kind),
	}
}

// Define registers a composite scenario.
func (c *Catalogue) Define(name string, kinds ...obfuscation.Kind) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return fmt.Errorf("invalid scenario name '%s'", name)
	}
	if c.Known(name) {
		return fmt.Errorf("scenario '%s' is already defined", name)
	}
	seen := make(map[obfuscation.Kind]bool, len(kinds))
	for _, k := range kinds {
		if _, ok := c.factories[k]; !ok {
			return fmt.Errorf("scenario '%s' uses unknown transform '%s'", name, k)
		}
		if seen[k] {
			return fmt.Errorf("scenario '%s' lists transform '%s' more than once", name, k)
		}
		seen[k] = true
	}
	c.custom[name] = append([]obfuscation.Kind(nil), kinds...)
	c.order = append(c.order, name)
	return nil
}

// Names returns every known scenario name, built-ins first.
func (c *Catalogue) Names() []string {
	out := append([]string(nil), Builtins...)
	return append(out, c.order...)
}

// Known reports whether name resolves to a scenario.
func (c *Catalogue) Known(name string) bool {
	for _, b := range Builtins {
		if b == name {
			return true
		}
	}
	_, ok := c.custom[name]
	return ok
}

// Build constructs the named scenario with freshly built transforms.
func (c *Catalogue) Build(name string) (Scenario, error) {
	var kinds []obfuscation.Kind
	switch name {
	case Baseline:
	case Encryption:
		kinds = []obfuscation.Kind{obfuscation.KindEncryption}
	case Padding:
		kinds = []obfuscation.Kind{obfuscation.KindPadding}
	case Shaping:
		kinds = []obfuscation.Kind{obfuscation.KindShaping}
	default:
		var ok bool
		if kinds, ok = c.custom[name]; !ok {
			return Scenario{}, fmt.Errorf("unknown scenario '%s'", name)
		}
	}

	transforms := make([]obfuscation.Transform, 0, len(kinds))
	for _, k := range kinds {
		factory, ok := c.factories[k]
		if !ok {
			return Scenario{}, fmt.Errorf("scenario '%s': no factory for transform '%s'", name, k)
		}
		t, err := factory()
		if err != nil {
			return Scenario{}, fmt.Errorf("scenario '%s': %w", name, err)
		}
		transforms = append(transforms, t)
	}
	return New(name, transforms...)
}

// Select normalizes a requested scenario list. "all" selects every known
// scenario. The baseline is always included, first, so every run has a
// reference to compare against. Duplicates are removed.
func (c *Catalogue) Select(requested []string) ([]string, error) {
	var names []string
	for _, r := range requested {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if r == "all" {
			names = append(names, c.Names()...)
			continue
		}
		if !c.Known(r) {
			return nil, fmt.Errorf("unknown scenario '%s' (known: %s)", r, strings.Join(c.Names(), ", "))
		}
		names = append(names, r)
	}
	if len(names) == 0 {
		names = c.Names()
	}

	out := []string{Baseline}
	seen := map[string]bool{Baseline: true}
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}
