// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Volume buckets of social discussion.
const (
	VolumeHigh    = "high"
	VolumeMid     = "mid"
	VolumeLow     = "low"
	VolumeUnknown = "unknown"
)

const (
	maxSummaryChannels = 5
	maxTopicKeywords   = 12
	maxSummaryKeywords = 6
	maxSummaryThemes   = 3
	minKeywordRunes    = 2
	maxKeywordRunes    = 40
)

type socialTheme struct {
	key   string
	label reasonText
}

// socialThemes is indexed by keywordMatcher group id.
var socialThemes = []socialTheme{
	{"barrier_repair", reasonText{"Barrier repair", "屏障修护"}},
	{"sensitive_redness", reasonText{"Sensitive redness", "敏感泛红"}},
	{"oil_acne", reasonText{"Oil & acne control", "控油痘痘"}},
	{"brightening", reasonText{"Brightening", "美白提亮"}},
	{"hydration", reasonText{"Hydration", "保湿补水"}},
	{"light_texture", reasonText{"Light texture", "清爽肤感"}},
	{"fragrance_free", reasonText{"Fragrance profile", "无香精"}},
}

var themeMatcher = newKeywordMatcher([][]string{
	{"barrier", "ceramide", "cica", "panthenol", "repair", "修护", "修復", "屏障", "泛红", "舒缓"},
	{"sensitive", "reactive", "redness", "sting", "敏感", "泛红", "刺痛", "耐受"},
	{"oily", "sebum", "acne", "blemish", "breakout", "控油", "痘", "闭口", "粉刺"},
	{"bright", "tone", "vitamin c", "niacinamide", "dark spot", "提亮", "美白", "肤色", "痘印"},
	{"hydration", "moistur", "plump", "hyaluronic", "保湿", "补水", "滋润"},
	{"lightweight", "non-greasy", "quick absorb", "清爽", "不黏", "轻薄", "肤感"},
	{"fragrance-free", "fragrance free", "fragrancefree", "no fragrance", "unscented", "无香精", "香精"},
})

var (
	keywordSplitPattern   = regexp.MustCompile(`[|,/;]+`)
	numericKeywordPattern = regexp.MustCompile(`^[0-9\-_:/.]+$`)
	hypeKeywordPattern    = regexp.MustCompile(`(?i)完美平替|100%\s*(?:相同|一样|identical|same)|miracle\s+dupe|绝对吊打|无敌平替`)
	internalKeywordPrefix = []string{"route_", "dedupe_", "internal_", "fallback_", "ref_"}
)

var sentimentHints = struct {
	positive, cautious, mixed reasonText
}{
	positive: reasonText{"Overall social discussion is mostly positive.", "社媒讨论整体偏正向。"},
	cautious: reasonText{"Social discussion is cautious; monitor tolerance-related feedback.", "社媒讨论偏谨慎，需关注耐受风险。"},
	mixed:    reasonText{"Social discussion is mixed.", "社媒讨论正负并存。"},
}

// BuildSocialSummary digests a raw social signal into its user-visible
// summary. It returns nil when the signal is too weak to show.
func BuildSocialSummary(signal *models.SocialSignal, lang string) *models.SocialSummary {
	if signal == nil {
		return nil
	}
	lang = models.NormalizeLang(lang)

	channels := socialChannels(signal)
	keywords := cleanKeywords(signal.TopicKeywords)
	themes := topThemes(keywords, lang)
	hint := sentimentHint(signal.SentimentProxy, lang)
	volume := volumeBucket(signal)
	weakVolume := volume == VolumeLow || volume == VolumeUnknown

	switch {
	case len(channels) == 0:
		return nil
	case len(channels) == 1 && len(keywords) < 2 && weakVolume:
		return nil
	case len(keywords) == 0 && hint == "" && weakVolume:
		return nil
	case len(themes) == 0 && len(keywords) < 2:
		return nil
	}

	summary := &models.SocialSummary{
		Themes:        themes,
		VolumeBucket:  volume,
		SentimentHint: hint,
	}
	if len(keywords) > 0 {
		top := keywords
		if len(top) > maxSummaryKeywords {
			top = top[:maxSummaryKeywords]
		}
		summary.TopKeywords = append([]string(nil), top...)
	}
	return summary
}

func socialChannels(signal *models.SocialSignal) []string {
	raw := append([]string(nil), signal.Channels...)
	platforms := make([]string, 0, len(signal.PlatformScores))
	for name := range signal.PlatformScores {
		platforms = append(platforms, name)
	}
	sort.Strings(platforms)
	raw = append(raw, platforms...)
	return models.NormalizeSocialChannels(raw, maxSummaryChannels)
}

// cleanKeywords splits, filters and deduplicates topic keywords.
func cleanKeywords(topics []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, topic := range topics {
		for _, part := range keywordSplitPattern.Split(topic, -1) {
			kw := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "#"))
			if !usableKeyword(kw) {
				continue
			}
			key := strings.ToLower(kw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kw)
			if len(out) == maxTopicKeywords {
				return out
			}
		}
	}
	return out
}

func usableKeyword(kw string) bool {
	n := utf8.RuneCountInString(kw)
	if n < minKeywordRunes || n > maxKeywordRunes {
		return false
	}
	lower := strings.ToLower(kw)
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(kw, "@") {
		return false
	}
	if strings.Trim(kw, "#") == "" {
		return false
	}
	for _, prefix := range internalKeywordPrefix {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	if numericKeywordPattern.MatchString(kw) || hypeKeywordPattern.MatchString(kw) {
		return false
	}
	return true
}

// topThemes counts one hit per theme per keyword and returns the labels of
// the strongest themes.
func topThemes(keywords []string, lang string) []string {
	hits := make(map[int]int)
	for _, kw := range keywords {
		for group := range themeMatcher.Groups(kw) {
			hits[group]++
		}
	}

	groups := make([]int, 0, len(hits))
	for g := range hits {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if hits[groups[i]] != hits[groups[j]] {
			return hits[groups[i]] > hits[groups[j]]
		}
		return socialThemes[groups[i]].key < socialThemes[groups[j]].key
	})
	if len(groups) > maxSummaryThemes {
		groups = groups[:maxSummaryThemes]
	}

	themes := make([]string, 0, len(groups))
	for _, g := range groups {
		themes = append(themes, socialThemes[g].label.in(lang))
	}
	return themes
}

// normalizeSentiment maps a sentiment proxy on [-1,1] or [0,100] to [0,1].
func normalizeSentiment(v float64) float64 {
	switch {
	case v >= 0 && v <= 1:
		return v
	case v >= -1 && v < 0:
		return (v + 1) / 2
	case v > 1 && v <= 100:
		return v / 100
	default:
		return models.Clamp01(v)
	}
}

func sentimentHint(proxy *float64, lang string) string {
	if proxy == nil {
		return ""
	}
	switch s := normalizeSentiment(*proxy); {
	case s >= 0.68:
		return sentimentHints.positive.in(lang)
	case s <= 0.35:
		return sentimentHints.cautious.in(lang)
	default:
		return sentimentHints.mixed.in(lang)
	}
}

func volumeBucket(signal *models.SocialSignal) string {
	p := signal.CoMentionStrength
	if p == nil {
		p = signal.ContextMatch
	}
	if p == nil {
		return VolumeUnknown
	}
	switch v := models.Clamp01(*p); {
	case v >= 0.7:
		return VolumeHigh
	case v >= 0.4:
		return VolumeMid
	case v > 0:
		return VolumeLow
	default:
		return VolumeUnknown
	}
}
