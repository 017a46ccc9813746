//go:build !integration

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
)

func TestParseDisplay(t *testing.T) {
	got := ParseDisplay(" numberland:Numberland | onlinesim:OnlineSim|5sim| :ignored|empty: ")
	assert.Equal(t, map[string]string{
		"numberland": "Numberland",
		"onlinesim":  "OnlineSim",
		"5sim":       "5sim",
		"empty":      "empty",
	}, got)
}

func TestParseEnabled(t *testing.T) {
	assert.Equal(t, []string{"onlinesim", "numberland"}, ParseEnabled(" OnlineSim, ,numberland,onlinesim"))
	assert.Empty(t, ParseEnabled(""))
}

func TestNewRegistry(t *testing.T) {
	cfg := config.ProvidersConfig{
		Enabled: "onlinesim,numberland",
		Display: "numberland:Numberland IR",
	}
	r, err := NewRegistry(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"onlinesim", "numberland"}, r.Enabled())
	assert.Equal(t, "onlinesim", r.Default())
	assert.Equal(t, "Numberland IR", r.DisplayName("numberland"))
	assert.Equal(t, "onlinesim", r.DisplayName("onlinesim"), "display falls back to key")

	p, err := r.Get("  NumberLand ")
	require.NoError(t, err)
	assert.Equal(t, KeyNumberland, p.Key())
	assert.Equal(t, "Numberland IR", p.DisplayName())

	_, err = r.Get("5sim")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestNewRegistry_UnknownEnabledKey(t *testing.T) {
	_, err := NewRegistry(config.ProvidersConfig{Enabled: "numberland,smsactivate"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}
