// Package ranker scores every command against a query vector.
package ranker

import (
	"sort"

	"github.com/ashwch/bumblebee/internal/cache"
	"github.com/ashwch/bumblebee/internal/embedding"
	"github.com/ashwch/bumblebee/internal/registry"
)

type Candidate struct {
	Command     registry.Command
	Score       float64
	MatchedText string
}

// Rank scores each command by its best cached vector and returns the
// candidates by descending score. Ties keep registry order. Commands with
// no cached vectors are left out.
func Rank(query []float32, reg registry.Registry, c cache.Cache) []Candidate {
	candidates := make([]Candidate, 0, len(reg.Commands))
	for _, cmd := range reg.Commands {
		examples := c.Vectors(cmd.ID)
		if len(examples) == 0 {
			continue
		}
		best := Candidate{Command: cmd, Score: embedding.Cosine(query, examples[0].Embedding), MatchedText: examples[0].Text}
		for _, ex := range examples[1:] {
			if score := embedding.Cosine(query, ex.Embedding); score > best.Score {
				best.Score = score
				best.MatchedText = ex.Text
			}
		}
		candidates = append(candidates, best)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
