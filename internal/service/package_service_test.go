package service

import (
	"testing"

	"hostbot/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageService(t *testing.T) {
	svc := NewPackageService(testCatalog(), zerolog.Nop())

	list := svc.ListPackages()
	require.Len(t, list, 2, "inactive packages are hidden")
	assert.Equal(t, "A1", list[0].Key)

	pkg, err := svc.GetPackage("b2")
	require.NoError(t, err)
	assert.Equal(t, "Pro B2", pkg.Name)

	_, err = svc.GetPackage("nope")
	assert.True(t, model.IsNotFound(err))

	_, err = svc.GetPackage("OLD")
	assert.True(t, model.IsValidation(err))
}

func TestNormalizeOrderID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HB-7K2M9QXA", "HB-7K2M9QXA"},
		{"hb-7k2m9qxa", "HB-7K2M9QXA"},
		{" 7k2m9qxa ", "HB-7K2M9QXA"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOrderID(tt.in))
		})
	}
}

func TestNewOrderID(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := newOrderID()
		assert.Regexp(t, `^HB-[0-9A-HJKMNP-TV-Z]{8}$`, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
