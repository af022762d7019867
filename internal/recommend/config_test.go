// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package recommend

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("defaults are valid", func(t *testing.T) {
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid default config, got %v", err)
		}
	})

	t.Run("dogfood is off", func(t *testing.T) {
		if cfg.Dogfood.Enabled {
			t.Error("expected dogfood disabled by default")
		}
		if cfg.InterleaveActive() || cfg.ExplorationActive() {
			t.Error("expected interleave and exploration inactive outside dogfood")
		}
	})

	t.Run("source timeouts", func(t *testing.T) {
		want := map[string]int64{
			SourceCatalogANN:      450,
			SourceIngredientIndex: 300,
			SourceSkinFitLight:    240,
			SourceKBBackfill:      220,
			SourceDupePipeline:    350,
			SourceOnPageRelated:   220,
		}
		for name, ms := range want {
			if got := cfg.Timeouts.For(name); got != ms {
				t.Errorf("expected %s timeout %d, got %d", name, ms, got)
			}
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"budget too small", func(c *Config) { c.BudgetMS = 50 }, true},
		{"budget too large", func(c *Config) { c.BudgetMS = 20000 }, true},
		{"max candidates zero", func(c *Config) { c.MaxCandidates = 0 }, true},
		{"max candidates too large", func(c *Config) { c.MaxCandidates = 11 }, true},
		{"negative retry grace", func(c *Config) { c.RetryGraceMS = -1 }, true},
		{"unknown on-page mode", func(c *Config) { c.OnPageMode = "sometimes" }, true},
		{"on-page always", func(c *Config) { c.OnPageMode = OnPageAlways }, false},
		{"zero timeout uses default", func(c *Config) { c.Timeouts.KBBackfill = 0 }, false},
		{"timeout too small", func(c *Config) { c.Timeouts.CatalogANN = 10 }, true},
		{"timeout too large", func(c *Config) { c.Timeouts.DupePipeline = 9000 }, true},
		{"negative router threshold", func(c *Config) { c.Router.TauDupe = -0.1 }, true},
		{"pool size zero", func(c *Config) { c.PoolSize.Related = 0 }, true},
		{"dogfood pool size too small", func(c *Config) { c.Dogfood.PoolSize.Dupes = 10 }, true},
		{"exploration rate above one", func(c *Config) { c.Dogfood.Exploration.RatePerBlock = 1.5 }, true},
		{"exploration items above five", func(c *Config) { c.Dogfood.Exploration.MaxItems = 6 }, true},
		{"interleave without rankers", func(c *Config) { c.Dogfood.Interleave.RankerB = " " }, true},
		{"interleave disabled without rankers", func(c *Config) {
			c.Dogfood.Interleave.Enabled = false
			c.Dogfood.Interleave.RankerA = ""
		}, false},
		{"lock top n too large", func(c *Config) { c.Dogfood.LockTopN = 9 }, true},
		{"async ttl too short", func(c *Config) { c.Dogfood.AsyncPollTTL = time.Second }, true},
		{"async ttl too long", func(c *Config) { c.Dogfood.AsyncPollTTL = 2 * time.Hour }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceTimeouts_For(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*SourceTimeouts)
		source string
		want   int64
	}{
		{"configured", func(s *SourceTimeouts) { s.SkinFitLight = 500 }, SourceSkinFitLight, 500},
		{"zero falls back to default", func(s *SourceTimeouts) { s.CatalogANN = 0 }, SourceCatalogANN, 450},
		{"clamped low", func(s *SourceTimeouts) { s.KBBackfill = 5 }, SourceKBBackfill, MinSourceTimeoutMS},
		{"clamped high", func(s *SourceTimeouts) { s.DupePipeline = 60000 }, SourceDupePipeline, MaxSourceTimeoutMS},
		{"unknown source", func(s *SourceTimeouts) {}, "bogus", MinSourceTimeoutMS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeouts := DefaultSourceTimeouts()
			tt.modify(&timeouts)
			if got := timeouts.For(tt.source); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestConfig_EffectivePoolSize(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.EffectivePoolSize().Competitors; got != 120 {
		t.Errorf("expected default competitors pool 120, got %d", got)
	}

	cfg.Dogfood.Enabled = true
	pool := cfg.EffectivePoolSize()
	if pool.Competitors != 800 || pool.Related != 500 || pool.Dupes != 400 {
		t.Errorf("expected dogfood pool 800/500/400, got %+v", pool)
	}
	if !cfg.InterleaveActive() || !cfg.ExplorationActive() {
		t.Error("expected interleave and exploration active in dogfood mode")
	}

	cfg.Dogfood.Exploration.RatePerBlock = 0
	if cfg.ExplorationActive() {
		t.Error("expected exploration inactive with zero rate")
	}
}

func TestConfig_Clone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()

	clone.BudgetMS = 5000
	clone.Dogfood.Enabled = true
	clone.Timeouts.CatalogANN = 900

	if original.BudgetMS != DefaultBudgetMS {
		t.Error("modifying clone affected original budget")
	}
	if original.Dogfood.Enabled {
		t.Error("modifying clone affected original dogfood")
	}
	if original.Timeouts.CatalogANN != 450 {
		t.Error("modifying clone affected original timeouts")
	}
}

func TestConfig_MarshalJSON(t *testing.T) {
	cfg := DefaultConfig()

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	t.Run("async poll ttl is string", func(t *testing.T) {
		dogfood, ok := parsed["dogfood"].(map[string]interface{})
		if !ok {
			t.Fatal("dogfood field not found or wrong type")
		}
		ttl, ok := dogfood["async_poll_ttl"].(string)
		if !ok {
			t.Fatal("dogfood.async_poll_ttl is not a string")
		}
		if ttl != "10m0s" {
			t.Errorf("expected 10m0s, got %q", ttl)
		}
	})

	t.Run("budget is present", func(t *testing.T) {
		if budget, ok := parsed["budget_ms"].(float64); !ok || budget != DefaultBudgetMS {
			t.Errorf("expected budget_ms %d, got %v", DefaultBudgetMS, parsed["budget_ms"])
		}
	})
}
