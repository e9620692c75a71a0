// Package resolver matches free-form user utterances against catalogs
// of named candidates: specialties, facilities, clinicians. Matching is
// two-staged: exact containment on normalized text first, token-sort
// fuzzy scoring as the fallback.
package resolver

import (
	"sort"
	"strings"
	"unicode"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

const (
	// DefaultThreshold is the minimum fuzzy score a candidate needs to
	// stay in contention.
	DefaultThreshold = 50

	// confidentScore is the fuzzy score above which the best candidate
	// wins outright even when others also cleared the threshold.
	confidentScore = 80

	// maxAmbiguous caps how many alternatives an ambiguous result
	// carries; anything too long to read back is useless in a dialogue.
	maxAmbiguous = 3
)

// Candidate is one catalog entry. A candidate may carry several labels
// (official name, address, spoken alias) and scores as the best of them.
type Candidate struct {
	ID     string
	Labels []string
}

// Match is a scored candidate.
type Match struct {
	ID    string
	Label string
	Score int
}

// Kind tags a resolution outcome.
type Kind int

const (
	// None means no candidate cleared the threshold.
	None Kind = iota
	// Unique means exactly one candidate is the confident answer.
	Unique
	// Ambiguous means several candidates are plausible and the user
	// must be asked to pick one.
	Ambiguous
)

// Result is the outcome of resolving one utterance.
type Result struct {
	Kind    Kind
	Match   Match   // set when Kind == Unique
	Options []Match // set when Kind == Ambiguous, best first, at most 3
}

// Normalize lowercases, replaces hyphens with spaces, strips the rest
// of the punctuation and collapses runs of whitespace.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '-':
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Resolve matches text against candidates with the given score
// threshold. Exact containment between the normalized text and a
// candidate label, in either direction, short-circuits the fuzzy
// stage: one containing candidate wins outright, more than one reads
// as no match. The fuzzy ranking only runs when nothing contains.
func Resolve(text string, candidates []Candidate, threshold int) Result {
	query := Normalize(text)
	if query == "" || len(candidates) == 0 {
		return Result{Kind: None}
	}

	var contained []Match
	for _, cand := range candidates {
		for _, label := range cand.Labels {
			norm := Normalize(label)
			if strings.Contains(norm, query) || strings.Contains(query, norm) {
				contained = append(contained, Match{ID: cand.ID, Label: label, Score: 100})
				break
			}
		}
	}
	if len(contained) == 1 {
		return Result{Kind: Unique, Match: contained[0]}
	}
	if len(contained) > 1 {
		// Several candidates contain the text; a fuzzy score must
		// never break that tie.
		return Result{Kind: None}
	}

	scored := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		best := Match{ID: cand.ID, Score: -1}
		for _, label := range cand.Labels {
			score := fuzzy.TokenSortRatio(query, Normalize(label))
			if score > best.Score {
				best.Score = score
				best.Label = label
			}
		}
		if best.Score >= threshold {
			scored = append(scored, best)
		}
	}
	if len(scored) == 0 {
		return Result{Kind: None}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > maxAmbiguous {
		scored = scored[:maxAmbiguous]
	}

	if len(scored) == 1 || scored[0].Score >= confidentScore && scored[0].Score > scored[1].Score {
		return Result{Kind: Unique, Match: scored[0]}
	}
	return Result{Kind: Ambiguous, Options: scored}
}
