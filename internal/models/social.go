// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package models

import "strings"

// Canonical social channel names.
const (
	ChannelReddit      = "reddit"
	ChannelXiaohongshu = "xiaohongshu"
	ChannelTikTok      = "tiktok"
	ChannelYouTube     = "youtube"
	ChannelInstagram   = "instagram"
)

// SocialChannels is the channel whitelist in canonical order.
var SocialChannels = []string{ChannelReddit, ChannelXiaohongshu, ChannelTikTok, ChannelYouTube, ChannelInstagram}

// NormalizeSocialChannel maps channel aliases ("xhs", "小红书", "yt", ...)
// to a canonical channel name. ok is false for unknown channels.
func NormalizeSocialChannel(raw string) (string, bool) {
	token := normalizeText(raw)
	switch {
	case token == "":
		return "", false
	case strings.Contains(token, "reddit"):
		return ChannelReddit, true
	case token == "red" || token == "xhs" || strings.Contains(token, "xiaohongshu") || strings.Contains(token, "小红书"):
		return ChannelXiaohongshu, true
	case token == "yt" || strings.Contains(token, "youtube") || strings.Contains(token, "you tube"):
		return ChannelYouTube, true
	case strings.Contains(token, "tiktok") || strings.Contains(token, "tik tok") || strings.Contains(token, "抖音"):
		return ChannelTikTok, true
	case token == "ig" || strings.Contains(token, "instagram") || strings.Contains(token, "insta"):
		return ChannelInstagram, true
	}
	return "", false
}

// NormalizeSocialChannels normalizes, deduplicates and bounds a channel list.
// max <= 0 means unbounded.
func NormalizeSocialChannels(raw []string, max int) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		ch, ok := NormalizeSocialChannel(r)
		if !ok {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
