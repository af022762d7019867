// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

// Pipeline identifiers recorded in provenance.
const (
	PipelineRecoBlocks   = "reco_blocks_dag.v1"
	ValidationSoftFail   = "soft_fail"
	SocialFetchAsync     = "async_refresh"
	MaxTimedOutBlocks    = 8
	MaxFallbackTokens    = 12
	MaxConfidenceReasons = 8
)

// BlockStat is the per-source summary published in provenance.
type BlockStat struct {
	Eligible   int    `json:"eligible"`
	Returned   int    `json:"returned"`
	Timeout    bool   `json:"timeout"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// InterleaveInfo describes an applied two-ranker interleave.
type InterleaveInfo struct {
	RankerA string `json:"ranker_a"`
	RankerB string `json:"ranker_b"`
}

// ExplorationInfo describes applied exploration per block.
type ExplorationInfo struct {
	RatePerBlock float64        `json:"rate_per_block"`
	MaxItems     int            `json:"max_explore_items"`
	Added        map[string]int `json:"added,omitempty"`
}

// Provenance records how a response was assembled. The social fields are
// filled in by asynchronous enrichment.
type Provenance struct {
	Pipeline           string               `json:"pipeline"`
	ValidationMode     string               `json:"validation_mode"`
	TimedOutBlocks     []string             `json:"timed_out_blocks"`
	FallbacksUsed      []string             `json:"fallbacks_used"`
	BlockStats         map[string]BlockStat `json:"block_stats"`
	Mode               string               `json:"mode"`
	OnPageMode         string               `json:"on_page_mode"`
	DogfoodMode        bool                 `json:"dogfood_mode"`
	InterleaveEnabled  bool                 `json:"interleave_enabled"`
	ExplorationEnabled bool                 `json:"exploration_enabled"`
	PoolSize           map[string]int       `json:"pool_size,omitempty"`
	Interleave         *InterleaveInfo      `json:"interleave,omitempty"`
	Exploration        *ExplorationInfo     `json:"exploration,omitempty"`

	SocialFetchMode     string   `json:"social_fetch_mode,omitempty"`
	SocialFreshUntil    string   `json:"social_fresh_until,omitempty"`
	SocialSourceVersion string   `json:"social_source_version,omitempty"`
	SocialChannelsUsed  []string `json:"social_channels_used,omitempty"`
}

// Clone returns a deep copy of the provenance.
func (p *Provenance) Clone() *Provenance {
	if p == nil {
		return nil
	}
	out := *p
	out.TimedOutBlocks = cloneStrings(p.TimedOutBlocks)
	out.FallbacksUsed = cloneStrings(p.FallbacksUsed)
	out.SocialChannelsUsed = cloneStrings(p.SocialChannelsUsed)
	if p.BlockStats != nil {
		out.BlockStats = make(map[string]BlockStat, len(p.BlockStats))
		for k, v := range p.BlockStats {
			out.BlockStats[k] = v
		}
	}
	if p.PoolSize != nil {
		out.PoolSize = make(map[string]int, len(p.PoolSize))
		for k, v := range p.PoolSize {
			out.PoolSize[k] = v
		}
	}
	if p.Interleave != nil {
		info := *p.Interleave
		out.Interleave = &info
	}
	if p.Exploration != nil {
		info := *p.Exploration
		if p.Exploration.Added != nil {
			info.Added = make(map[string]int, len(p.Exploration.Added))
			for k, v := range p.Exploration.Added {
				info.Added[k] = v
			}
		}
		out.Exploration = &info
	}
	return &out
}
