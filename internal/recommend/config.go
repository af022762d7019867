// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/routing"
)

// Budget and timeout bounds, in milliseconds.
const (
	DefaultBudgetMS = 1200
	MinBudgetMS     = 120
	MaxBudgetMS     = 12000

	MinSourceTimeoutMS = 40
	MaxSourceTimeoutMS = 8000

	// minDispatchMS is the smallest timeout a dispatched source is given.
	minDispatchMS = 30

	DefaultMaxCandidates = 4
	MinMaxCandidates     = 1
	MaxMaxCandidates     = 10

	DefaultRetryGraceMS = 100
)

// Config contains all configuration for the blocks scheduler.
type Config struct {
	// BudgetMS is the default overall budget of a request.
	// Default: 1200. Range: [120, 12000].
	BudgetMS int64 `json:"budget_ms" koanf:"budget_ms"`

	// MaxCandidates is the default number of candidates served per block.
	// Default: 4. Range: [1, 10].
	MaxCandidates int `json:"max_candidates" koanf:"max_candidates"`

	// RetryGraceMS extends a fallback retry of a source that timed out in
	// the primary stage. Default: 100.
	RetryGraceMS int64 `json:"retry_grace_ms" koanf:"retry_grace_ms"`

	// OnPageMode is the default on_page_related mode.
	// Default: fallback_only.
	OnPageMode string `json:"on_page_mode" koanf:"on_page_mode"`

	// Timeouts holds the per-source timeouts.
	Timeouts SourceTimeouts `json:"timeouts_ms" koanf:"timeouts_ms"`

	// Router contains the hard-gate thresholds.
	Router routing.Config `json:"router" koanf:"router"`

	// PoolSize caps the gated pool per block before scoring.
	PoolSize PoolSizeConfig `json:"pool_size" koanf:"pool_size"`

	// Dogfood contains the internal-testing surface.
	Dogfood DogfoodConfig `json:"dogfood" koanf:"dogfood"`
}

// SourceTimeouts are per-source timeouts in milliseconds.
type SourceTimeouts struct {
	CatalogANN      int64 `json:"catalog_ann" koanf:"catalog_ann"`
	IngredientIndex int64 `json:"ingredient_index" koanf:"ingredient_index"`
	SkinFitLight    int64 `json:"skin_fit_light" koanf:"skin_fit_light"`
	KBBackfill      int64 `json:"kb_backfill" koanf:"kb_backfill"`
	DupePipeline    int64 `json:"dupe_pipeline" koanf:"dupe_pipeline"`
	OnPageRelated   int64 `json:"on_page_related" koanf:"on_page_related"`
}

// For returns the timeout of the named source clamped to [40, 8000].
//
//nolint:gocritic // hugeParam: value receiver keeps timeouts immutable
func (t SourceTimeouts) For(source string) int64 {
	v := t.rawFor(source)
	if v == 0 {
		v = DefaultSourceTimeouts().rawFor(source)
	}
	return clampInt64(v, MinSourceTimeoutMS, MaxSourceTimeoutMS)
}

// DefaultSourceTimeouts returns the production per-source timeouts.
func DefaultSourceTimeouts() SourceTimeouts {
	return SourceTimeouts{
		CatalogANN:      450,
		IngredientIndex: 300,
		SkinFitLight:    240,
		KBBackfill:      220,
		DupePipeline:    350,
		OnPageRelated:   220,
	}
}

// PoolSizeConfig caps the candidates kept per block after routing.
type PoolSizeConfig struct {
	Competitors int `json:"competitors" koanf:"competitors"`
	Related     int `json:"related_products" koanf:"related_products"`
	Dupes       int `json:"dupes" koanf:"dupes"`
}

// For returns the pool size of the named block.
func (p PoolSizeConfig) For(block string) int {
	switch block {
	case models.BlockCompetitors:
		return p.Competitors
	case models.BlockRelated:
		return p.Related
	case models.BlockDupes:
		return p.Dupes
	default:
		return 0
	}
}

// ToMap returns the pool sizes keyed by block name.
func (p PoolSizeConfig) ToMap() map[string]int {
	return map[string]int{
		models.BlockCompetitors: p.Competitors,
		models.BlockRelated:     p.Related,
		models.BlockDupes:       p.Dupes,
	}
}

// DogfoodConfig groups the settings that only apply in dogfood mode.
// Interleave and exploration are applied only when Enabled is set.
type DogfoodConfig struct {
	// Enabled turns dogfood mode on. Default: false.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// PoolSize replaces Config.PoolSize in dogfood mode.
	// Default: 800/500/400 (competitors/related/dupes).
	PoolSize PoolSizeConfig `json:"pool_size" koanf:"pool_size"`

	// Exploration contains exploration-slot parameters.
	Exploration ExplorationConfig `json:"exploration" koanf:"exploration"`

	// Interleave contains two-ranker interleave parameters.
	Interleave InterleaveConfig `json:"interleave" koanf:"interleave"`

	// LockTopN is the number of leading items kept stable across async
	// updates. Default: 3. Range: [0, 8].
	LockTopN int `json:"lock_top_n" koanf:"lock_top_n"`

	// AsyncPollTTL is the lifetime of async update tickets.
	// Default: 10m. Range: [5s, 1h].
	AsyncPollTTL time.Duration `json:"async_poll_ttl" koanf:"async_poll_ttl"`

	// FeedbackSinkDir receives a daily JSONL file of employee feedback.
	// Empty disables the sink.
	FeedbackSinkDir string `json:"feedback_sink_dir" koanf:"feedback_sink_dir"`
}

// ExplorationConfig controls exploration slots.
type ExplorationConfig struct {
	Enabled      bool    `json:"enabled" koanf:"enabled"`
	RatePerBlock float64 `json:"rate_per_block" koanf:"rate_per_block"`
	MaxItems     int     `json:"max_explore_items" koanf:"max_explore_items"`
}

// InterleaveConfig names the two rankers that are interleaved.
type InterleaveConfig struct {
	Enabled bool   `json:"enabled" koanf:"enabled"`
	RankerA string `json:"ranker_a" koanf:"ranker_a"`
	RankerB string `json:"ranker_b" koanf:"ranker_b"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		BudgetMS:      DefaultBudgetMS,
		MaxCandidates: DefaultMaxCandidates,
		RetryGraceMS:  DefaultRetryGraceMS,
		OnPageMode:    OnPageFallbackOnly,
		Timeouts:      DefaultSourceTimeouts(),
		Router:        routing.DefaultConfig(),
		PoolSize: PoolSizeConfig{
			Competitors: 120,
			Related:     80,
			Dupes:       80,
		},
		Dogfood: DogfoodConfig{
			Enabled: false,
			PoolSize: PoolSizeConfig{
				Competitors: 800,
				Related:     500,
				Dupes:       400,
			},
			Exploration: ExplorationConfig{
				Enabled:      true,
				RatePerBlock: 0.2,
				MaxItems:     2,
			},
			Interleave: InterleaveConfig{
				Enabled: true,
				RankerA: "ranker_v1",
				RankerB: "ranker_v2",
			},
			LockTopN:     3,
			AsyncPollTTL: 10 * time.Minute,
		},
	}
}

// ExplorationActive reports whether exploration slots are applied.
func (c *Config) ExplorationActive() bool {
	return c.Dogfood.Enabled && c.Dogfood.Exploration.Enabled &&
		c.Dogfood.Exploration.RatePerBlock > 0 && c.Dogfood.Exploration.MaxItems > 0
}

// InterleaveActive reports whether two-ranker interleaving is applied.
func (c *Config) InterleaveActive() bool {
	return c.Dogfood.Enabled && c.Dogfood.Interleave.Enabled
}

// EffectivePoolSize returns the dogfood pool sizes in dogfood mode.
func (c *Config) EffectivePoolSize() PoolSizeConfig {
	if c.Dogfood.Enabled {
		return c.Dogfood.PoolSize
	}
	return c.PoolSize
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.BudgetMS < MinBudgetMS || c.BudgetMS > MaxBudgetMS {
		return fmt.Errorf("budget_ms must be in [%d, %d], got %d", MinBudgetMS, MaxBudgetMS, c.BudgetMS)
	}
	if c.MaxCandidates < MinMaxCandidates || c.MaxCandidates > MaxMaxCandidates {
		return fmt.Errorf("max_candidates must be in [%d, %d], got %d", MinMaxCandidates, MaxMaxCandidates, c.MaxCandidates)
	}
	if c.RetryGraceMS < 0 {
		return fmt.Errorf("retry_grace_ms must be non-negative, got %d", c.RetryGraceMS)
	}
	switch c.OnPageMode {
	case OnPageFallbackOnly, OnPageDisabled, OnPageAlways:
	default:
		return fmt.Errorf("on_page_mode must be one of fallback_only, disabled, always, got %q", c.OnPageMode)
	}

	for _, name := range SourceNames {
		v := c.Timeouts.rawFor(name)
		if v != 0 && (v < MinSourceTimeoutMS || v > MaxSourceTimeoutMS) {
			return fmt.Errorf("timeouts_ms.%s must be in [%d, %d], got %d", name, MinSourceTimeoutMS, MaxSourceTimeoutMS, v)
		}
	}

	if c.Router.TauCat < 0 || c.Router.TauDupe < 0 || c.Router.TauPriceDupe < 0 {
		return fmt.Errorf("router thresholds must be non-negative")
	}

	if err := validatePoolSize("pool_size", c.PoolSize, 1, 5000); err != nil {
		return err
	}
	if err := validatePoolSize("dogfood.pool_size", c.Dogfood.PoolSize, 20, 5000); err != nil {
		return err
	}

	ex := c.Dogfood.Exploration
	if ex.RatePerBlock < 0 || ex.RatePerBlock > 1 {
		return fmt.Errorf("dogfood.exploration.rate_per_block must be in [0, 1], got %f", ex.RatePerBlock)
	}
	if ex.MaxItems < 0 || ex.MaxItems > 5 {
		return fmt.Errorf("dogfood.exploration.max_explore_items must be in [0, 5], got %d", ex.MaxItems)
	}

	il := c.Dogfood.Interleave
	if il.Enabled && (strings.TrimSpace(il.RankerA) == "" || strings.TrimSpace(il.RankerB) == "") {
		return fmt.Errorf("dogfood.interleave rankers must be set when interleave is enabled")
	}

	if c.Dogfood.LockTopN < 0 || c.Dogfood.LockTopN > 8 {
		return fmt.Errorf("dogfood.lock_top_n must be in [0, 8], got %d", c.Dogfood.LockTopN)
	}
	if c.Dogfood.AsyncPollTTL < 5*time.Second || c.Dogfood.AsyncPollTTL > time.Hour {
		return fmt.Errorf("dogfood.async_poll_ttl must be in [5s, 1h], got %v", c.Dogfood.AsyncPollTTL)
	}

	return nil
}

func validatePoolSize(prefix string, p PoolSizeConfig, minSize, maxSize int) error {
	for block, v := range p.ToMap() {
		if v < minSize || v > maxSize {
			return fmt.Errorf("%s.%s must be in [%d, %d], got %d", prefix, block, minSize, maxSize, v)
		}
	}
	return nil
}

//nolint:gocritic // hugeParam: value receiver keeps timeouts immutable
func (t SourceTimeouts) rawFor(source string) int64 {
	switch source {
	case SourceCatalogANN:
		return t.CatalogANN
	case SourceIngredientIndex:
		return t.IngredientIndex
	case SourceSkinFitLight:
		return t.SkinFitLight
	case SourceKBBackfill:
		return t.KBBackfill
	case SourceDupePipeline:
		return t.DupePipeline
	case SourceOnPageRelated:
		return t.OnPageRelated
	default:
		return 0
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	// All nested structs contain only value types.
	out := *c
	return &out
}

// MarshalJSON implements custom JSON marshaling for duration fields.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	type dogfoodJSON struct {
		Enabled      bool              `json:"enabled"`
		PoolSize     PoolSizeConfig    `json:"pool_size"`
		Exploration  ExplorationConfig `json:"exploration"`
		Interleave   InterleaveConfig  `json:"interleave"`
		LockTopN     int               `json:"lock_top_n"`
		AsyncPollTTL string            `json:"async_poll_ttl"`
	}
	return json.Marshal(&struct {
		*Alias
		Dogfood dogfoodJSON `json:"dogfood"`
	}{
		Alias: (*Alias)(c),
		Dogfood: dogfoodJSON{
			Enabled:      c.Dogfood.Enabled,
			PoolSize:     c.Dogfood.PoolSize,
			Exploration:  c.Dogfood.Exploration,
			Interleave:   c.Dogfood.Interleave,
			LockTopN:     c.Dogfood.LockTopN,
			AsyncPollTTL: c.Dogfood.AsyncPollTTL.String(),
		},
	})
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
