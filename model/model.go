package model

import (
	"github.com/pkg/errors"
)

// A Model is an immutable ordered sequence of site declarations.
// Distribution parameters for site i may depend on any site declared
// before it; the interpreter in exec.go enforces this by resolving
// sites strictly in declaration order. Models are safe to share across
// parallel chains because nothing mutates them after Build.
type Model struct {
	name  string
	decls []Decl
}

// A Builder records declarations in order. This is the model-authoring
// surface: where a macro-based frontend would rewrite a generative
// program, we record (identifier, distribution, data) tuples
// explicitly and interpret them later.
type Builder struct {
	name  string
	decls []Decl
	err   error
}

// NewBuilder starts an empty model with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Latent declares a site to be inferred.
func (b *Builder) Latent(id Ident, dist DistFunc) *Builder {
	return b.Declare(Decl{ID: id, Dist: dist, Data: Missing()})
}

// Observe declares a site bound to a data slot. A Missing datum makes
// the site latent, which is how partially missing data columns are
// expressed.
func (b *Builder) Observe(id Ident, dist DistFunc, data Datum) *Builder {
	return b.Declare(Decl{ID: id, Dist: dist, Data: data})
}

// Declare appends a raw declaration. Latent/Observe are sugar over it.
func (b *Builder) Declare(d Decl) *Builder {
	if b.err != nil {
		return b
	}
	if d.Dist == nil {
		b.err = errors.Errorf("Declaration %s has no distribution", d.ID)
		return b
	}
	if e := d.ID.Check(); e != nil {
		b.err = errors.Wrapf(e, "Invalid declaration identifier")
		return b
	}
	b.decls = append(b.decls, d)
	return b
}

// Build finalizes the model. Duplicate identifiers and empty models
// are configuration errors.
func (b *Builder) Build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.decls) < 1 {
		return nil, errors.Errorf("Model %s has no declarations", b.name)
	}

	seen := make(map[string]bool, len(b.decls))
	for _, d := range b.decls {
		key := d.ID.String()
		if seen[key] {
			return nil, errors.Errorf("Duplicate identifier %s in model %s", key, b.name)
		}
		seen[key] = true
	}

	m := &Model{
		name:  b.name,
		decls: make([]Decl, len(b.decls)),
	}
	copy(m.decls, b.decls)
	return m, nil
}

// Name returns the model's name.
func (m *Model) Name() string {
	return m.name
}

// Decls returns the declarations in order. The slice is a copy;
// callers can not alter the model.
func (m *Model) Decls() []Decl {
	out := make([]Decl, len(m.decls))
	copy(out, m.decls)
	return out
}

// Len is the number of declared sites.
func (m *Model) Len() int {
	return len(m.decls)
}

// Idents returns every declared identifier in order.
func (m *Model) Idents() []Ident {
	out := make([]Ident, len(m.decls))
	for i, d := range m.decls {
		out[i] = d.ID
	}
	return out
}

// Latents returns the identifiers of sites to be inferred, in
// declaration order.
func (m *Model) Latents() []Ident {
	out := make([]Ident, 0, len(m.decls))
	for _, d := range m.decls {
		if d.Latent() {
			out = append(out, d.ID)
		}
	}
	return out
}

// HasIdent reports whether the identifier is declared.
func (m *Model) HasIdent(id Ident) bool {
	key := id.String()
	for _, d := range m.decls {
		if d.ID.String() == key {
			return true
		}
	}
	return false
}
