// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"regexp"

	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend/reranking"
)

// cautionPattern flags sentiment hints that warrant a tolerance note.
var cautionPattern = regexp.MustCompile(`(?i)(cautious|risk|谨慎|风险)`)

var platformLabels = map[string]string{
	models.ChannelReddit:      "Reddit",
	models.ChannelXiaohongshu: "Xiaohongshu",
	models.ChannelTikTok:      "TikTok",
	models.ChannelYouTube:     "YouTube",
	models.ChannelInstagram:   "Instagram",
}

// buildEvidence digests the social signals of every block into card-level
// evidence. Platform scores average the co-mention strength (else context
// match, else 0.5) of the candidates seen on each platform.
func buildEvidence(blocks map[string][]models.Candidate, lang string, channelsUsed []string) *Evidence {
	var (
		themes    []string
		sentiment []string
	)
	type agg struct {
		sum   float64
		count int
	}
	platforms := make(map[string]*agg)

	for _, block := range models.Blocks {
		items := blocks[block]
		for i := range items {
			c := &items[i]
			summary := c.SocialSummary
			if summary == nil {
				summary = reranking.BuildSocialSummary(c.SocialRaw, lang)
			}
			if summary != nil {
				themes = append(themes, summary.Themes...)
				if summary.SentimentHint != "" {
					sentiment = append(sentiment, summary.SentimentHint)
				}
			}

			raw := c.SocialRaw
			if raw == nil {
				continue
			}
			strength := 0.5
			switch {
			case raw.CoMentionStrength != nil:
				strength = models.Round(models.Clamp01(*raw.CoMentionStrength), 3)
			case raw.ContextMatch != nil:
				strength = models.Round(models.Clamp01(*raw.ContextMatch), 3)
			}
			for _, ch := range models.NormalizeSocialChannels(raw.Channels, maxChannels) {
				label := platformLabels[ch]
				a, ok := platforms[label]
				if !ok {
					a = &agg{}
					platforms[label] = a
				}
				a.sum += strength
				a.count++
			}
		}
	}

	ev := &Evidence{
		TypicalPositive: []string{},
		TypicalNegative: []string{},
		RiskForGroups:   []string{},
		ChannelsUsed:    cloneStrings(channelsUsed),
	}
	for label, a := range platforms {
		if ev.PlatformScores == nil {
			ev.PlatformScores = make(map[string]float64, len(platforms))
		}
		ev.PlatformScores[label] = models.Round(a.sum/float64(a.count), 3)
	}

	top := uniqFold(themes, 64, 6)
	if len(top) > 3 {
		top = top[:3]
	}
	if top != nil {
		ev.TypicalPositive = top
	}
	if len(sentiment) > 0 && cautionPattern.MatchString(sentiment[0]) {
		ev.TypicalNegative = []string{"tolerance watch"}
		if lang == models.LangCN {
			ev.RiskForGroups = []string{"敏感肌需观察耐受"}
		} else {
			ev.RiskForGroups = []string{"Sensitive skin should monitor tolerance"}
		}
	}
	return ev
}
