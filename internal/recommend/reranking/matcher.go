// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package reranking

import (
	"strings"
	"unicode/utf8"
)

// keywordMatcher is a case-insensitive Aho-Corasick automaton. Every pattern
// carries a group id, and a search reports which groups occur in a text in
// O(len(text) + matches) regardless of how many patterns are registered.
//
// Patterns are fixed at construction, so the automaton is read-only and
// safe for concurrent use without locking.
type keywordMatcher struct {
	root     *acNode
	patterns []acPattern
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int // indices into patterns ending at this node
}

type acPattern struct {
	text  string
	group int
}

// acMatch is one occurrence of a pattern. Position is a byte offset into
// the lowercased text.
type acMatch struct {
	Pattern  string
	Group    int
	Position int
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

// newKeywordMatcher builds an automaton where groups[i] lists the patterns
// of group i. Empty patterns are ignored.
func newKeywordMatcher(groups [][]string) *keywordMatcher {
	m := &keywordMatcher{root: newACNode()}
	for group, patterns := range groups {
		for _, p := range patterns {
			if p == "" {
				continue
			}
			m.insert(len(m.patterns), strings.ToLower(p))
			m.patterns = append(m.patterns, acPattern{text: strings.ToLower(p), group: group})
		}
	}
	m.buildFailureLinks()
	return m
}

func (m *keywordMatcher) insert(index int, text string) {
	node := m.root
	for _, ch := range text {
		next := node.children[ch]
		if next == nil {
			next = newACNode()
			node.children[ch] = next
		}
		node = next
	}
	node.output = append(node.output, index)
}

// buildFailureLinks wires failure transitions breadth-first so every node
// points at its longest proper suffix that is also a trie prefix.
func (m *keywordMatcher) buildFailureLinks() {
	queue := make([]*acNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// Search returns every pattern occurrence in text.
func (m *keywordMatcher) Search(text string) []acMatch {
	if len(m.patterns) == 0 {
		return nil
	}

	var matches []acMatch
	node := m.root
	lower := strings.ToLower(text)

	for i, ch := range lower {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]

		end := i + utf8.RuneLen(ch)
		for _, idx := range node.output {
			p := m.patterns[idx]
			matches = append(matches, acMatch{Pattern: p.text, Group: p.group, Position: end - len(p.text)})
		}
	}
	return matches
}

// Groups returns the set of groups with at least one occurrence in text.
func (m *keywordMatcher) Groups(text string) map[int]struct{} {
	matches := m.Search(text)
	if len(matches) == 0 {
		return nil
	}
	out := make(map[int]struct{}, len(matches))
	for _, match := range matches {
		out[match.Group] = struct{}{}
	}
	return out
}
