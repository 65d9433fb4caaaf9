package lane

import (
	"path"
	"strings"

	"github.com/wucoord/wu/internal/types"
)

// Scoring weights for lane inference. A pattern match is worth more than
// a keyword match because code paths are the stronger signal.
const (
	patternWeight = 3
	keywordWeight = 1

	// minConfidence is the floor below which a sub-lane suggestion is
	// downgraded to a parent-only suggestion.
	minConfidence = 3
)

// Suggestion is the result of lane inference. It is advice only: nothing
// in admission control consults it, and callers must never enforce it.
type Suggestion struct {
	Lane       string
	Score      int
	ParentOnly bool
}

// Suggest scores every configured sub-lane against the unit's code paths
// and description and returns the best match.
//
// Scores are absolute sums, deliberately not normalized by the number of
// patterns a lane defines: a lane with more genuine matches always
// outranks a lane with fewer, no matter how many patterns each lists.
// Ties break by config order. Below the confidence floor the suggestion
// falls back to the best lane's parent.
func (r *Registry) Suggest(codePaths []string, description string) Suggestion {
	desc := strings.ToLower(description)

	best := Suggestion{}
	found := false
	for _, key := range r.order {
		def := r.defs[key]
		_, sub, err := types.ParseLane(def.Name)
		if err != nil || sub == "" {
			continue // parents are not scored directly
		}

		score := 0
		for _, pattern := range def.Patterns {
			if globMatchesAny(pattern, codePaths) {
				score += patternWeight
			}
		}
		for _, kw := range def.Keywords {
			if kw != "" && strings.Contains(desc, strings.ToLower(kw)) {
				score += keywordWeight
			}
		}

		// Strict > keeps the earlier lane on ties (config iteration order).
		if !found || score > best.Score {
			best = Suggestion{Lane: def.Name, Score: score}
			found = true
		}
	}

	if !found || best.Score == 0 {
		return Suggestion{}
	}
	if best.Score < minConfidence {
		parent, _, _ := types.ParseLane(best.Lane)
		return Suggestion{Lane: parent, Score: best.Score, ParentOnly: true}
	}
	return best
}

// globMatchesAny reports whether the glob pattern matches at least one of
// the given paths. Patterns containing "**" match any number of path
// segments at that position.
func globMatchesAny(pattern string, paths []string) bool {
	for _, p := range paths {
		if globMatch(pattern, p) {
			return true
		}
	}
	return false
}

func globMatch(pattern, p string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "**") {
		ok, err := path.Match(pattern, p)
		return err == nil && ok
	}

	// "a/**/b": anchor the literal prefix and suffix, anything between.
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(p, prefix) {
		return false
	}
	if suffix == "" {
		return true
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(p, prefix), "/")
	if ok, err := path.Match(suffix, path.Base(rest)); err == nil && ok {
		return true
	}
	ok, err := path.Match(suffix, rest)
	return err == nil && ok
}
