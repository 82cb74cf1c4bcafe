package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilderBasics(t *testing.T) {
	assert := assert.New(t)

	m, err := NewBuilder("basic").
		Latent(Name("s"), Fixed(InverseGamma{Alpha: 2, Beta: 3})).
		Latent(Name("m"), func(tr *Trace) (Dist, error) {
			s, err := tr.Val(Name("s"))
			if err != nil {
				return nil, err
			}
			return Normal{Mu: 0, Sigma: math.Sqrt(s)}, nil
		}).
		Observe(Name("x"), func(tr *Trace) (Dist, error) {
			mv, err := tr.Val(Name("m"))
			if err != nil {
				return nil, err
			}
			s, err := tr.Val(Name("s"))
			if err != nil {
				return nil, err
			}
			return Normal{Mu: mv, Sigma: math.Sqrt(s)}, nil
		}, Observed(1.5)).
		Build()

	assert.NoError(err)
	assert.Equal("basic", m.Name())
	assert.Equal(3, m.Len())
	assert.Equal([]Ident{Name("s"), Name("m")}, m.Latents())
	assert.True(m.HasIdent(Name("x")))
	assert.False(m.HasIdent(Name("nope")))
}

func TestBuilderErrors(t *testing.T) {
	assert := assert.New(t)

	// Empty model
	_, err := NewBuilder("empty").Build()
	assert.Error(err)

	// Duplicate identifier
	_, err = NewBuilder("dup").
		Latent(Name("a"), Fixed(Normal{Mu: 0, Sigma: 1})).
		Latent(Name("a"), Fixed(Normal{Mu: 0, Sigma: 1})).
		Build()
	assert.Error(err)

	// Nil distribution
	_, err = NewBuilder("nodist").
		Latent(Name("a"), nil).
		Build()
	assert.Error(err)

	// Bad identifier
	_, err = NewBuilder("badid").
		Latent(Name(""), Fixed(Normal{Mu: 0, Sigma: 1})).
		Build()
	assert.Error(err)
}

func TestMissingDatumIsLatent(t *testing.T) {
	assert := assert.New(t)

	m, err := NewBuilder("partial").
		Observe(Indexed("y", 0), Fixed(Normal{Mu: 0, Sigma: 1}), Observed(0.5)).
		Observe(Indexed("y", 1), Fixed(Normal{Mu: 0, Sigma: 1}), Missing()).
		Build()
	assert.NoError(err)

	lat := m.Latents()
	assert.Equal(1, len(lat))
	assert.Equal("y[1]", lat[0].String())
}

func TestTraceOps(t *testing.T) {
	assert := assert.New(t)

	tr := NewTrace()
	assert.Equal(0, tr.Len())

	_, err := tr.Val(Name("a"))
	assert.Error(err)

	tr.Set(Name("a"), Normal{Mu: 0, Sigma: 1}, 1.5, false)
	tr.Set(Name("b"), Gamma{Alpha: 2, Beta: 1}, 0.5, true)

	v, err := tr.Val(Name("a"))
	assert.NoError(err)
	assert.Equal(1.5, v)

	// Overwrite keeps order stable
	tr.Set(Name("a"), Normal{Mu: 0, Sigma: 1}, 2.5, false)
	assert.Equal(2, tr.Len())
	assert.Equal([]Ident{Name("a"), Name("b")}, tr.Idents())

	lv := tr.LatentValues()
	assert.Equal(1, len(lv))
	assert.Equal(2.5, lv["a"])

	cp := tr.Clone()
	tr.Set(Name("a"), Normal{Mu: 0, Sigma: 1}, 9.0, false)
	v, err = cp.Val(Name("a"))
	assert.NoError(err)
	assert.Equal(2.5, v) // clone unaffected

	e, ok := cp.At(Name("b"))
	assert.True(ok)
	assert.True(e.Observed)
	assert.False(e.Transformed)

	cp.MarkTransformed(Name("b"), true)
	e, _ = cp.At(Name("b"))
	assert.True(e.Transformed)
}
