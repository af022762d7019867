// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package experiment

import (
	"crypto/sha256"

	"github.com/tomtom215/recoblocks/internal/models"
)

// Interleaved is the merged list and the team each item was credited to,
// keyed by candidate identity.
type Interleaved struct {
	Items       []models.Candidate
	Attribution map[string]string
}

type team struct {
	name  string
	items []models.Candidate
	keys  []string
	next  int
}

func newTeam(name string, items []models.Candidate) *team {
	t := &team{name: name, items: items, keys: make([]string, len(items))}
	for i := range items {
		t.keys[i] = models.CandidateKey(&items[i], i)
	}
	return t
}

// skip advances past identities that were already emitted.
func (t *team) skip(emitted map[string]struct{}) {
	for t.next < len(t.keys) {
		if _, done := emitted[t.keys[t.next]]; !done {
			return
		}
		t.next++
	}
}

func (t *team) exhausted() bool {
	return t.next >= len(t.items)
}

// TeamDraftInterleave merges two rankings of the same block. The first
// byte of sha256(seed) picks the starting team (even means A), then teams
// alternate, each drawing its highest-ranked candidate not yet emitted. A
// team with nothing left yields its turn. Items present in both rankings
// are attributed "both".
func TeamDraftInterleave(a, b []models.Candidate, limit int, seed string) Interleaved {
	out := Interleaved{
		Items:       []models.Candidate{},
		Attribution: map[string]string{},
	}
	if limit <= 0 {
		return out
	}

	teamA := newTeam(models.AttributionA, a)
	teamB := newTeam(models.AttributionB, b)

	inA := make(map[string]struct{}, len(teamA.keys))
	for _, k := range teamA.keys {
		inA[k] = struct{}{}
	}
	inB := make(map[string]struct{}, len(teamB.keys))
	for _, k := range teamB.keys {
		inB[k] = struct{}{}
	}

	sum := sha256.Sum256([]byte(seed))
	turnA := sum[0]%2 == 0

	emitted := make(map[string]struct{}, len(a)+len(b))
	for len(out.Items) < limit {
		teamA.skip(emitted)
		teamB.skip(emitted)
		if teamA.exhausted() && teamB.exhausted() {
			break
		}

		active, other := teamA, teamB
		if !turnA {
			active, other = teamB, teamA
		}
		if active.exhausted() {
			active = other
		}

		key := active.keys[active.next]
		item := active.items[active.next].Clone()
		active.next++
		emitted[key] = struct{}{}

		attribution := active.name
		_, fromA := inA[key]
		_, fromB := inB[key]
		if fromA && fromB {
			attribution = models.AttributionBoth
		}

		out.Items = append(out.Items, item)
		out.Attribution[key] = attribution
		turnA = !turnA
	}

	return out
}
