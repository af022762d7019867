// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package social

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Response bounds.
const (
	maxTopicKeywords  = 10
	maxMergedKeywords = 12
	maxChannels       = 5
)

// flexString decodes a JSON string or number. Other values decode to "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == 'n' {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err == nil {
		*f = flexString(data)
		return nil
	}
	*f = ""
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// flexScore decodes a score sent as a number or numeric string. set is true
// for any non-null value, so the first present alias wins even when it does
// not parse.
type flexScore struct {
	set   bool
	value *float64
}

func (f *flexScore) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	f.set = true
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.value = &v
	return nil
}

// platformRef is a platform given as a bare name or an object.
type platformRef struct {
	names []string
}

func (p *platformRef) UnmarshalJSON(data []byte) error {
	var name flexString
	if err := json.Unmarshal(data, &name); err == nil && name != "" {
		p.names = []string{name.String()}
		return nil
	}
	var obj struct {
		Name     flexString `json:"name"`
		Channel  flexString `json:"channel"`
		Platform flexString `json:"platform"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	p.names = []string{obj.Name.String(), obj.Channel.String(), obj.Platform.String()}
	return nil
}

// topicRef is a topic given as a bare string or as {topic|name}.
type topicRef struct {
	text string
}

func (t *topicRef) UnmarshalJSON(data []byte) error {
	var name flexString
	if err := json.Unmarshal(data, &name); err == nil && name != "" {
		t.text = name.String()
		return nil
	}
	var obj struct {
		Topic flexString `json:"topic"`
		Name  flexString `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	t.text = firstNonEmpty(obj.Topic.String(), obj.Name.String())
	return nil
}

type rawWindow struct {
	From    flexString `json:"from"`
	Start   flexString `json:"start"`
	StartAt flexString `json:"start_at"`
	To      flexString `json:"to"`
	End     flexString `json:"end"`
	EndAt   flexString `json:"end_at"`
}

// signalItem is one signal row as the social service may send it. Several
// aliases are accepted for most fields.
type signalItem struct {
	CandidateKey    flexString `json:"candidate_key"`
	CandidateKeyAlt flexString `json:"candidateKey"`
	Key             flexString `json:"key"`
	ProductID       flexString `json:"product_id"`
	ProductIDAlt    flexString `json:"productId"`
	SKUID           flexString `json:"sku_id"`
	SKUIDAlt        flexString `json:"skuId"`
	URL             flexString `json:"url"`
	Name            flexString `json:"name"`
	DisplayName     flexString `json:"display_name"`
	DisplayNameAlt  flexString `json:"displayName"`

	CoMention      flexScore `json:"co_mention_strength"`
	CoMentionAlt   flexScore `json:"coMentionStrength"`
	Strength       flexScore `json:"strength"`
	Score          flexScore `json:"score"`
	Sentiment      flexScore `json:"sentiment_proxy"`
	SentimentAlt   flexScore `json:"sentiment"`
	SentimentScore flexScore `json:"sentimentScore"`
	Context        flexScore `json:"context_match"`
	ContextAlt     flexScore `json:"contextMatch"`

	Channels       []flexString         `json:"channels"`
	Platforms      []platformRef        `json:"platforms"`
	PlatformScores map[string]flexScore `json:"platform_scores"`

	TopicKeywords []flexString `json:"topic_keywords"`
	TopKeywords   []flexString `json:"top_keywords"`
	Keywords      []flexString `json:"keywords"`
	TopTopics     []topicRef   `json:"top_topics"`

	TimeWindow    *rawWindow `json:"time_window"`
	TimeWindowAlt *rawWindow `json:"timeWindow"`
}

type signalResponse struct {
	Signals            []json.RawMessage          `json:"signals"`
	Results            []json.RawMessage          `json:"results"`
	Candidates         []json.RawMessage          `json:"candidates"`
	Items              []json.RawMessage          `json:"items"`
	SignalsByCandidate map[string]json.RawMessage `json:"signals_by_candidate"`
	ChannelsUsed       []flexString               `json:"social_channels_used"`
	SourceVersion      flexString                 `json:"source_version"`
	Version            flexString                 `json:"version"`
	SourceVersionAlt   flexString                 `json:"sourceVersion"`
}

// normalizedResponse is a social response mapped onto candidate keys.
type normalizedResponse struct {
	SignalsByKey  map[string]*models.SocialSignal
	ChannelsUsed  []string
	SourceVersion string
}

// normalizeResponse maps a response body onto the candidates it was asked
// about. Rows that match no candidate or carry no usable signal are
// skipped. An error means the body is not a JSON object.
func normalizeResponse(body []byte, candidates []models.Candidate) (normalizedResponse, error) {
	var resp signalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return normalizedResponse{}, fmt.Errorf("decode social response: %w", err)
	}

	lookup := buildCandidateLookup(candidates)

	var rows []json.RawMessage
	rows = append(rows, resp.Signals...)
	rows = append(rows, resp.Results...)
	rows = append(rows, resp.Candidates...)
	rows = append(rows, resp.Items...)

	items := make([]signalItem, 0, len(rows)+len(resp.SignalsByCandidate))
	for _, raw := range rows {
		var item signalItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		items = append(items, item)
	}

	mapKeys := make([]string, 0, len(resp.SignalsByCandidate))
	for k := range resp.SignalsByCandidate {
		mapKeys = append(mapKeys, k)
	}
	sort.Strings(mapKeys)
	for _, k := range mapKeys {
		var item signalItem
		if err := json.Unmarshal(resp.SignalsByCandidate[k], &item); err != nil {
			continue
		}
		if item.CandidateKey == "" {
			item.CandidateKey = flexString(k)
		}
		items = append(items, item)
	}

	out := normalizedResponse{SignalsByKey: make(map[string]*models.SocialSignal)}
	var order []string
	for i := range items {
		key, sig, ok := normalizeItem(&items[i], lookup)
		if !ok {
			continue
		}
		prev, seen := out.SignalsByKey[key]
		if !seen {
			order = append(order, key)
		}
		out.SignalsByKey[key] = mergeResponseSignal(prev, sig)
	}

	used := make([]string, 0, len(resp.ChannelsUsed))
	for _, ch := range resp.ChannelsUsed {
		used = append(used, ch.String())
	}
	for _, key := range order {
		used = append(used, out.SignalsByKey[key].Channels...)
	}
	out.ChannelsUsed = models.NormalizeSocialChannels(used, maxChannels)
	out.SourceVersion = sanitizeText(firstNonEmpty(
		resp.SourceVersion.String(), resp.Version.String(), resp.SourceVersionAlt.String()), 80)
	return out, nil
}

// buildCandidateLookup maps every candidate key and identity alias to the
// candidate key. The first candidate claiming an alias keeps it.
func buildCandidateLookup(candidates []models.Candidate) map[string]string {
	lookup := make(map[string]string, len(candidates)*4)
	for i := range candidates {
		c := &candidates[i]
		key := CandidateKey(c, i)
		if key == "" {
			continue
		}
		if _, ok := lookup[key]; !ok {
			lookup[key] = key
		}
		aliases := []string{
			sanitizeText(c.ProductID, 220),
			sanitizeText(c.SKUID, 220),
			sanitizeText(firstNonEmpty(c.URL, c.Source.URL), 240),
			sanitizeText(c.Name, 220),
		}
		for _, alias := range aliases {
			alias = strings.ToLower(alias)
			if alias == "" {
				continue
			}
			if _, ok := lookup[alias]; !ok {
				lookup[alias] = key
			}
		}
	}
	return lookup
}

func normalizeItem(item *signalItem, lookup map[string]string) (string, *models.SocialSignal, bool) {
	var lookupKey string
	for _, v := range []flexString{
		item.CandidateKey, item.CandidateKeyAlt, item.Key,
		item.ProductID, item.ProductIDAlt, item.SKUID, item.SKUIDAlt,
		item.URL, item.Name, item.DisplayName, item.DisplayNameAlt,
	} {
		if k := strings.ToLower(sanitizeText(v.String(), 240)); k != "" {
			lookupKey = k
			break
		}
	}
	key, ok := lookup[lookupKey]
	if lookupKey == "" || !ok {
		return "", nil, false
	}

	sig := &models.SocialSignal{
		CoMentionStrength: firstScore(item.CoMention, item.CoMentionAlt, item.Strength, item.Score),
		SentimentProxy:    firstScore(item.Sentiment, item.SentimentAlt, item.SentimentScore),
		ContextMatch:      firstScore(item.Context, item.ContextAlt),
		TopicKeywords:     collectKeywords(item),
		Channels:          itemChannels(item),
		PlatformScores:    platformScores(item.PlatformScores),
		TimeWindow:        normalizeWindow(item.TimeWindow, item.TimeWindowAlt),
	}
	if len(sig.Channels) == 0 && len(sig.TopicKeywords) == 0 &&
		sig.CoMentionStrength == nil && sig.SentimentProxy == nil && sig.ContextMatch == nil {
		return "", nil, false
	}
	return key, sig, true
}

// normalizeScore maps a raw score onto [0,1]: values in (1,100] are
// percentages, larger values saturate.
func normalizeScore(v float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v <= 1:
		return models.Round(v, 3)
	case v <= 100:
		return models.Round(v/100, 3)
	default:
		return 1
	}
}

// firstScore normalizes the first alias that was present.
func firstScore(aliases ...flexScore) *float64 {
	for _, a := range aliases {
		if !a.set {
			continue
		}
		if a.value == nil {
			return nil
		}
		v := normalizeScore(*a.value)
		return &v
	}
	return nil
}

func itemChannels(item *signalItem) []string {
	raw := make([]string, 0, len(item.Channels)+len(item.Platforms)+len(item.PlatformScores))
	for _, ch := range item.Channels {
		raw = append(raw, ch.String())
	}
	for _, p := range item.Platforms {
		raw = append(raw, p.names...)
	}
	keys := make([]string, 0, len(item.PlatformScores))
	for k := range item.PlatformScores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	raw = append(raw, keys...)
	return models.NormalizeSocialChannels(raw, maxChannels)
}

func platformScores(raw map[string]flexScore) map[string]float64 {
	var out map[string]float64
	for name, score := range raw {
		ch, ok := models.NormalizeSocialChannel(name)
		if !ok || score.value == nil {
			continue
		}
		if out == nil {
			out = make(map[string]float64, len(raw))
		}
		out[ch] = normalizeScore(*score.value)
	}
	return out
}

func collectKeywords(item *signalItem) []string {
	merged := make([]string, 0, len(item.TopicKeywords)+len(item.TopKeywords)+len(item.Keywords)+len(item.TopTopics))
	for _, list := range [][]flexString{item.TopicKeywords, item.TopKeywords, item.Keywords} {
		for _, v := range list {
			merged = append(merged, v.String())
		}
	}
	for _, t := range item.TopTopics {
		merged = append(merged, t.text)
	}
	return uniqFold(merged, 42, maxTopicKeywords)
}

func normalizeWindow(windows ...*rawWindow) *models.TimeWindow {
	for _, w := range windows {
		if w == nil {
			continue
		}
		from := sanitizeText(firstNonEmpty(w.From.String(), w.Start.String(), w.StartAt.String()), 64)
		to := sanitizeText(firstNonEmpty(w.To.String(), w.End.String(), w.EndAt.String()), 64)
		if from == "" || to == "" {
			return nil
		}
		return &models.TimeWindow{From: from, To: to}
	}
	return nil
}

// mergeResponseSignal overlays next onto prev. Present scores replace,
// channels and keywords accumulate.
func mergeResponseSignal(prev, next *models.SocialSignal) *models.SocialSignal {
	if prev == nil {
		return next
	}
	out := prev.Clone()
	overlaySignal(out, next)
	out.Channels = models.NormalizeSocialChannels(append(cloneStrings(prev.Channels), next.Channels...), maxChannels)
	out.TopicKeywords = uniqExact(append(cloneStrings(prev.TopicKeywords), next.TopicKeywords...), 42, maxTopicKeywords)
	return out
}

// overlaySignal copies the present scalar fields of next into dst.
func overlaySignal(dst, next *models.SocialSignal) {
	if next.CoMentionStrength != nil {
		v := *next.CoMentionStrength
		dst.CoMentionStrength = &v
	}
	if next.SentimentProxy != nil {
		v := *next.SentimentProxy
		dst.SentimentProxy = &v
	}
	if next.ContextMatch != nil {
		v := *next.ContextMatch
		dst.ContextMatch = &v
	}
	if next.TimeWindow != nil {
		tw := *next.TimeWindow
		dst.TimeWindow = &tw
	}
	for ch, v := range next.PlatformScores {
		if dst.PlatformScores == nil {
			dst.PlatformScores = make(map[string]float64, len(next.PlatformScores))
		}
		dst.PlatformScores[ch] = v
	}
}

// uniqFold keeps the first spelling of case-insensitively equal tokens.
func uniqFold(in []string, maxLen, limit int) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		token := sanitizeText(raw, maxLen)
		if token == "" {
			continue
		}
		k := strings.ToLower(token)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, token)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func uniqExact(in []string, maxLen, limit int) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		token := sanitizeText(raw, maxLen)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
