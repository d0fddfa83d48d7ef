package backend

import (
	_ "embed"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Entry declares one backend in a catalog file.
//
//	backends:
//	  - name: opus-mt
//	    kind: libretranslate
//	    grade: 2
//	    url: http://opus-mt:5000
//	    pairs: [de-en, en-de, en-fr, zh-TW->en]
//	  - name: nlb-200
//	    kind: worker
//	    grade: 2
//	    socket: /var/run/polyglot/nlb-200.sock
//	    languages: [de, en, fr]
type Entry struct {
	Name  string   `json:"name"`
	Kind  Kind     `json:"kind"`
	Grade int      `json:"grade"`
	Pairs []string `json:"pairs,omitempty"`
	// Languages declares every ordered pair between distinct languages,
	// in addition to Pairs.
	Languages []string `json:"languages,omitempty"`

	// URL is the base URL of libretranslate and argos engines.
	URL string `json:"url,omitempty"`
	// Socket is the unix socket path of a worker engine.
	Socket string `json:"socket,omitempty"`
	// Workers bounds concurrent connections to a worker engine.
	Workers int `json:"workers,omitempty"`
	// Function and Region address a lambda engine.
	Function string `json:"function,omitempty"`
	Region   string `json:"region,omitempty"`
	// Timeout is a Go duration string applied to each engine call.
	Timeout string `json:"timeout,omitempty"`
}

// Descriptor converts the entry into the capability declaration used for routing.
func (e Entry) Descriptor() (Descriptor, error) {
	pairs := make([]LanguagePair, 0, len(e.Pairs)+len(e.Languages)*len(e.Languages))
	seen := make(map[LanguagePair]bool, cap(pairs))
	add := func(p LanguagePair) {
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	for _, s := range e.Pairs {
		p, err := ParseLanguagePair(s)
		if err != nil {
			return Descriptor{}, fmt.Errorf("backend %s: %w", e.Name, err)
		}
		add(p)
	}
	for _, src := range e.Languages {
		if src == "" {
			return Descriptor{}, fmt.Errorf("backend %s: empty language code", e.Name)
		}
		for _, tgt := range e.Languages {
			if src != tgt {
				add(LanguagePair{Source: src, Target: tgt})
			}
		}
	}
	return Descriptor{Name: e.Name, Pairs: pairs, QualityGrade: e.Grade}, nil
}

// Catalog is the set of backends an instance knows about. Order matters:
// it is the registration order used to break ties between equal grades.
type Catalog struct {
	Backends []Entry `json:"backends"`
}

// DefaultCatalog returns the built-in catalog: nlb-200, opus-mt and wmt-19
// served by inference workers, and the mock backend. It is used when no
// catalog file is configured.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(builtinCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML (or JSON) catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates catalog content.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks names are unique and every entry is usable.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Backends))
	for i, e := range c.Backends {
		if e.Name == "" {
			return fmt.Errorf("catalog entry %d: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("catalog entry %d: duplicate backend %q", i, e.Name)
		}
		seen[e.Name] = true
		if _, err := ParseKind(string(e.Kind)); err != nil {
			return fmt.Errorf("backend %s: %w", e.Name, err)
		}
		if e.Grade < 0 {
			return fmt.Errorf("backend %s: grade must not be negative", e.Name)
		}
		d, err := e.Descriptor()
		if err != nil {
			return err
		}
		if len(d.Pairs) == 0 {
			return fmt.Errorf("backend %s: at least one language pair is required", e.Name)
		}
	}
	return nil
}

// Lookup returns the entry with the given name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	for _, e := range c.Backends {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Select returns the entries named in names, in catalog order.
// Unknown names are an error.
func (c *Catalog) Select(names []string) ([]Entry, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Lookup(n); !ok {
			return nil, fmt.Errorf("backend %q is not in the catalog", n)
		}
		wanted[n] = true
	}
	selected := make([]Entry, 0, len(wanted))
	for _, e := range c.Backends {
		if wanted[e.Name] {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

// Descriptors returns the descriptors of the named backends in catalog order,
// silently skipping names the catalog does not know.
func (c *Catalog) Descriptors(names []string) []Descriptor {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Descriptor
	for _, e := range c.Backends {
		if !wanted[e.Name] {
			continue
		}
		// Validate already guarantees the pairs parse.
		d, err := e.Descriptor()
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
