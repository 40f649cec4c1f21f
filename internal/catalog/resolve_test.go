package catalog

import (
	"context"
	"errors"
	"testing"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAll_MergesInOrder(t *testing.T) {
	base := NewMapCatalog(samplePackages()...)
	promo := NewMapCatalog(model.Package{Key: "a1", Name: "Starter A1 Promo", Price: decimal.NewFromInt(4000), Active: true})

	loader := &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
		switch path {
		case "base.gz":
			return base, nil
		case "promo.gz":
			return promo, nil
		}
		return nil, errors.New("unknown")
	}}

	c, err := LoadAll(context.Background(), loader, []string{"base.gz", "promo.gz"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, c.Size())

	a1, ok := c.Get("A1")
	require.True(t, ok)
	assert.Equal(t, "Starter A1 Promo", a1.Name)
}

func TestLoadAll_Error(t *testing.T) {
	loader := &mockLoader{loadFunc: func(ctx context.Context, path string) (Catalog, error) {
		return nil, errors.New("boom")
	}}

	_, err := LoadAll(context.Background(), loader, []string{"x.gz"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x.gz")
}

func TestResolve(t *testing.T) {
	c := NewMapCatalog(samplePackages()...)

	p, err := Resolve(c, " b2 ")
	require.NoError(t, err)
	assert.Equal(t, "Pro B2", p.Name)

	_, err = Resolve(c, "ZZ")
	assert.True(t, model.IsNotFound(err))

	_, err = Resolve(c, "old")
	assert.True(t, model.IsValidation(err))
}

func TestMapCatalog_DuplicateKeysLastWins(t *testing.T) {
	c := NewMapCatalog(
		model.Package{Key: "A1", Name: "first", Active: true},
		model.Package{Key: "a1", Name: "second", Active: true},
	)
	assert.Equal(t, 1, c.Size())
	p, _ := c.Get("A1")
	assert.Equal(t, "second", p.Name)
}
