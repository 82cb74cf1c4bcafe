package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// An Ident names a single random-variable site: a base symbol plus an
// optional index path (so "x", "x[3]", "w[1][2]"). Identifiers are
// stable across repeated executions of the same model structure, which
// is what lets a Trace entry be looked up and overwritten on the next
// iteration.
type Ident struct {
	Sym  string
	Path []int
}

// Name returns an un-indexed identifier.
func Name(sym string) Ident {
	return Ident{Sym: sym}
}

// Indexed returns an identifier with an index path.
func Indexed(sym string, path ...int) Ident {
	return Ident{Sym: sym, Path: path}
}

// String renders the identifier as it appears in model declarations.
func (id Ident) String() string {
	if len(id.Path) == 0 {
		return id.Sym
	}

	var sb strings.Builder
	sb.WriteString(id.Sym)
	for _, i := range id.Path {
		sb.WriteByte('[')
		sb.WriteString(strconv.Itoa(i))
		sb.WriteByte(']')
	}
	return sb.String()
}

// Check returns an error if the identifier can not name a site.
func (id Ident) Check() error {
	if len(id.Sym) < 1 {
		return errors.Errorf("Identifier has an empty base symbol")
	}
	for _, i := range id.Path {
		if i < 0 {
			return errors.Errorf("Identifier %s has negative index %d", id.Sym, i)
		}
	}
	return nil
}

// ParseIdent reads an identifier in String() form ("x" or "x[3]").
// Used by the CLI query surface; model code should build Idents
// directly.
func ParseIdent(s string) (Ident, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		id := Name(s)
		return id, id.Check()
	}

	id := Ident{Sym: s[:open]}
	rest := s[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return Ident{}, errors.Errorf("Malformed identifier %q", s)
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return Ident{}, errors.Errorf("Malformed identifier %q", s)
		}
		n, err := strconv.Atoi(rest[1:close])
		if err != nil {
			return Ident{}, errors.Wrapf(err, "Malformed index in identifier %q", s)
		}
		id.Path = append(id.Path, n)
		rest = rest[close+1:]
	}

	return id, id.Check()
}
