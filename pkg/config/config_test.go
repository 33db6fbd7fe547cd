package config

import (
	"testing"
	"time"

	"github.com/jstittsworth/bracket-optimizer/internal/bracket"
	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
	assert.Equal(t, selector.DefaultSlack, cfg.BoundSlack)
	assert.Equal(t, 9, cfg.MaxDay)
	assert.Equal(t, []int{0, 1}, cfg.PairDays)
	assert.Equal(t, bracket.DefaultDayRounds(), cfg.Rounds())
	assert.Equal(t, "mens", cfg.Gender)
	assert.Equal(t, 0.8, cfg.MinFirstRoundWin)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CorsOrigins)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SEARCH_TIMEOUT", "5s")
	t.Setenv("SEARCH_NODE_LIMIT", "1000")
	t.Setenv("BOUND_SLACK", "0.5")
	t.Setenv("MAX_DAY", "3")
	t.Setenv("PAIR_DAYS", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout)

	opts := cfg.SearchOptions()
	assert.Equal(t, 3, opts.MaxDay)
	assert.Equal(t, 0.5, opts.Slack)
	assert.Equal(t, int64(1000), opts.NodeLimit)
	assert.Equal(t, []int{0}, opts.PairDays)
}

func TestLoadConfig_InvalidLists(t *testing.T) {
	t.Setenv("PAIR_DAYS", "0,x")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidRounds(t *testing.T) {
	t.Setenv("DAY_ROUNDS", "2,2,9")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestSnapshotFilter(t *testing.T) {
	cfg := &Config{Gender: "womens", MinFirstRoundWin: 0.7}
	f := cfg.SnapshotFilter("2018-03-13")
	assert.Equal(t, bracket.Filter{Gender: "womens", ForecastDate: "2018-03-13", MinFirstRoundWin: 0.7}, f)
}
