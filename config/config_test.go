package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mms-connector", cfg.AppName)
	assert.Equal(t, "development", cfg.ENV)

	assert.Equal(t, "tmall", cfg.Mms.MarketplaceID)
	assert.Equal(t, int64(1), cfg.Sync.InitialSinceID)
	assert.Equal(t, "example.com", cfg.Sync.EmailDomain)
	assert.Contains(t, cfg.Sync.ShippableStatuses, "paid")
	assert.Contains(t, cfg.Sync.ExcludedStatuses, "closed")
	assert.Contains(t, cfg.Sync.FirstRunExcludedStatuses, "partially_shipped")

	assert.True(t, cfg.Stock.Enabled)
	assert.Equal(t, "**", cfg.Stock.BundleSeparator)
	assert.Equal(t, "bundle_multipliers", cfg.Stock.MultiplierAttribute)

	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
}

func TestValidateRequiresMarketplaceCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())

	cfg.Mms.BaseURL = "https://api.mms.example"
	assert.Error(t, cfg.Validate())

	cfg.Mms.AppID = "app-1"
	assert.Error(t, cfg.Validate())

	cfg.Mms.AppKey = "c2VjcmV0"
	assert.NoError(t, cfg.Validate())
}
