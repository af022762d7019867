// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"strings"

	"github.com/tomtom215/recoblocks/internal/models"
)

const (
	levelHigh = 0.75
	levelMed  = 0.5
)

// reasonText holds the EN and CN variants of one sentence.
type reasonText struct {
	en, cn string
}

func (r reasonText) in(lang string) string {
	if lang == models.LangCN {
		return r.cn
	}
	return r.en
}

// tiered holds the sentences for high, medium and low feature values.
// Features with two tiers leave med equal to low.
type tiered struct {
	high, med, low reasonText
}

func (t tiered) pick(value float64) reasonText {
	switch {
	case value >= levelHigh:
		return t.high
	case value >= levelMed:
		return t.med
	default:
		return t.low
	}
}

var reasonTemplates = map[string]tiered{
	FeatureCategory: {
		high: reasonText{"Strong category/use-case match with the anchor product.", "与目标产品在品类和使用场景上高度一致。"},
		med:  reasonText{"Good category/use-case alignment with the anchor product.", "与目标产品在品类场景上较为接近。"},
		low:  reasonText{"Moderate category/use-case alignment.", "品类场景相关性中等。"},
	},
	FeatureIngredient: {
		high: reasonText{"Key ingredient functions are highly similar.", "关键成分功能高度相似。"},
		med:  reasonText{"Ingredient functional profile is well aligned.", "成分功能有较好重合。"},
		low:  reasonText{"Ingredient functional similarity is moderate.", "成分功能相似度中等。"},
	},
	FeatureSkinFit: {
		high: reasonText{"High match to the current skin profile.", "对当前肤质画像匹配度高。"},
		med:  reasonText{"Good match to the current skin profile.", "与当前肤质画像较匹配。"},
		low:  reasonText{"Moderate match to the current skin profile.", "与当前肤质画像匹配度一般。"},
	},
	FeatureSocial: {
		high: reasonText{"Strong social/public reference signal.", "社交/公开反馈信号较强。"},
		med:  reasonText{"Moderately strong social reference signal.", "社交参考信号中等偏上。"},
		low:  reasonText{"Limited social reference signal.", "社交参考信号有限。"},
	},
	FeaturePrice: {
		high: reasonText{"Price band is close to the anchor product.", "价格带与目标产品接近。"},
		med:  reasonText{"Price distance is acceptable.", "价格差距可接受。"},
		low:  reasonText{"Price distance is relatively large.", "价格差异较大。"},
	},
	FeatureBrand: twoTier(
		reasonText{"Cross-brand candidate for direct comparison.", "跨品牌候选，便于横向比较。"},
		reasonText{"Same-brand relation signal, mainly for related context.", "同品牌相关候选，更多用于关联参考。"},
	),
	FeatureQuality: twoTier(
		reasonText{"Source quality and evidence coverage are strong.", "来源质量与证据覆盖较好。"},
		reasonText{"Source quality and evidence coverage are moderate.", "来源质量与证据覆盖中等。"},
	),
	FeatureBrandAffinity: twoTier(
		reasonText{"High brand affinity indicates strong relation.", "品牌关联度高，属于强相关产品。"},
		reasonText{"Moderate brand affinity relation.", "品牌关联度中等。"},
	),
	FeatureCoView: twoTier(
		reasonText{"Strong co-view signal.", "共现浏览信号较强。"},
		reasonText{"Moderate co-view signal.", "共现浏览信号中等。"},
	),
	FeatureKBRoutine: twoTier(
		reasonText{"Strong KB routine association.", "在常见护理组合中关联度较高。"},
		reasonText{"Moderate KB routine association.", "在常见护理组合中有一定关联。"},
	),
}

var dupePriceTemplate = tiered{
	high: reasonText{"More budget-friendly with strong dupe potential.", "价格更友好，替代性更强。"},
	med:  reasonText{"Price is close/cheaper with viable dupe potential.", "价格层级接近并具备替代潜力。"},
	low:  reasonText{"Price advantage is limited.", "价格优势有限。"},
}

var (
	defaultReason   = reasonText{"Composite match from available evidence.", "来自可用证据的综合匹配。"}
	fallbackSummary = reasonText{"Candidate selected from available evidence and feature matching.", "基于可用证据与特征匹配生成的候选。"}
)

var boundaryNotes = map[string]reasonText{
	models.BlockRelated: {
		"Related products are contextual references and not cross-brand substitutes.",
		"同品牌/同页面关联项仅用于参考，不等同于跨品牌替代。",
	},
	models.BlockDupes: {
		"Dupe suggestions prioritize price-fit; verify formula differences and tolerance.",
		"平替偏向预算友好，仍需关注配方差异与耐受性。",
	},
	models.BlockCompetitors: {
		"Competitors are cross-brand by default for side-by-side category/benefit/price comparison.",
		"竞品默认跨品牌，用于同品类/功效/价位的横向比较。",
	},
}

func twoTier(high, low reasonText) tiered {
	return tiered{high: high, med: low, low: low}
}

// ReasonSentence returns the user-visible sentence for a feature value.
func ReasonSentence(feature string, value float64, block, lang string) string {
	lang = models.NormalizeLang(lang)
	if feature == FeaturePrice && block == models.BlockDupes {
		return dupePriceTemplate.pick(value).in(lang)
	}
	t, ok := reasonTemplates[feature]
	if !ok {
		return defaultReason.in(lang)
	}
	return t.pick(value).in(lang)
}

// BoundaryNote returns the per-block disclaimer.
func BoundaryNote(block, lang string) string {
	note, ok := boundaryNotes[block]
	if !ok {
		note = boundaryNotes[models.BlockCompetitors]
	}
	return note.in(models.NormalizeLang(lang))
}

// FallbackSummary is used when no summary can be built.
func FallbackSummary(lang string) string {
	return fallbackSummary.in(models.NormalizeLang(lang))
}

// Summary builds the one-line explanation from the two leading features.
func Summary(block, name string, top []Contribution, lang string) string {
	lang = models.NormalizeLang(lang)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "This product"
	}

	lead := Contribution{Feature: FeatureCategory}
	if len(top) > 0 {
		lead = top[0]
	}
	leadText := trimSentenceEnd(ReasonSentence(lead.Feature, lead.Value, block, lang))
	secondText := ""
	if len(top) > 1 {
		secondText = trimSentenceEnd(ReasonSentence(top[1].Feature, top[1].Value, block, lang))
	}

	if lang == models.LangCN {
		if secondText != "" {
			return name + " 入选原因：" + leadText + "，且" + secondText + "。"
		}
		return name + " 入选原因：" + leadText + "。"
	}
	if secondText != "" {
		return name + " is selected because " + strings.ToLower(leadText) + " and " + strings.ToLower(secondText) + "."
	}
	return name + " is selected because " + strings.ToLower(leadText) + "."
}

func trimSentenceEnd(s string) string {
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSuffix(s, "。")
}

// Explain builds the sanitized explanation for a scored candidate. An
// existing boundary note on the candidate is kept.
func Explain(block string, c *models.Candidate, top []Contribution, lang string) *models.WhyCandidate {
	if len(top) > models.MaxReasons {
		top = top[:models.MaxReasons]
	}

	reasons := make([]string, 0, len(top))
	for _, f := range top {
		if r := SanitizeText(ReasonSentence(f.Feature, f.Value, block, lang)); r != "" {
			reasons = append(reasons, r)
		}
	}
	if len(reasons) == 0 {
		reasons = []string{FallbackSummary(lang)}
	}

	summary := SanitizeText(Summary(block, c.Name, top, lang))
	if summary == "" {
		summary = FallbackSummary(lang)
	}

	boundary := ""
	if c.WhyCandidate != nil {
		boundary = SanitizeText(c.WhyCandidate.BoundaryUserVisible)
	}
	if boundary == "" {
		boundary = BoundaryNote(block, lang)
	}

	return &models.WhyCandidate{
		Summary:             summary,
		ReasonsUserVisible:  reasons,
		BoundaryUserVisible: boundary,
	}
}
