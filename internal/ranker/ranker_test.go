package ranker

import (
	"math/rand"
	"testing"

	"github.com/ashwch/bumblebee/internal/cache"
	"github.com/ashwch/bumblebee/internal/registry"
)

func mustRegistry(t *testing.T, ids ...string) registry.Registry {
	t.Helper()
	commands := make([]registry.Command, 0, len(ids))
	for _, id := range ids {
		commands = append(commands, registry.Command{ID: id, Description: id, Template: "true"})
	}
	reg, err := registry.New(commands)
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	return reg
}

func TestRankUsesBestExamplePerCommand(t *testing.T) {
	reg := mustRegistry(t, "volume_up", "volume_mute")
	c := cache.Cache{
		"volume_up": {Examples: []cache.Example{
			{Text: "Turn the volume up", Embedding: []float32{0, 1}},
			{Text: "louder", Embedding: []float32{1, 0.1}},
		}},
		"volume_mute": {Examples: []cache.Example{
			{Text: "Mute", Embedding: []float32{0, 1}},
		}},
	}

	got := Rank([]float32{1, 0}, reg, c)
	if len(got) != 2 {
		t.Fatalf("expected two candidates, got %d", len(got))
	}
	if got[0].Command.ID != "volume_up" || got[0].MatchedText != "louder" {
		t.Fatalf("expected volume_up via louder on top, got %+v", got[0])
	}
	if got[1].Score != 0 {
		t.Fatalf("expected orthogonal mute score 0, got %v", got[1].Score)
	}
}

func TestRankExcludesCommandsWithoutVectors(t *testing.T) {
	reg := mustRegistry(t, "a", "b")
	c := cache.Cache{"b": {Examples: []cache.Example{{Text: "b", Embedding: []float32{1}}}}}
	got := Rank([]float32{1}, reg, c)
	if len(got) != 1 || got[0].Command.ID != "b" {
		t.Fatalf("expected only b, got %+v", got)
	}
	if got := Rank([]float32{1}, reg, cache.Cache{}); len(got) != 0 {
		t.Fatalf("expected empty ranking, got %+v", got)
	}
}

func TestRankBreaksTiesByRegistryOrder(t *testing.T) {
	reg := mustRegistry(t, "first", "second", "third")
	same := []cache.Example{{Text: "x", Embedding: []float32{1, 1}}}
	c := cache.Cache{"third": {Examples: same}, "second": {Examples: same}, "first": {Examples: same}}

	got := Rank([]float32{1, 1}, reg, c)
	for i, id := range []string{"first", "second", "third"} {
		if got[i].Command.ID != id {
			t.Fatalf("expected registry order on ties, got %s at %d", got[i].Command.ID, i)
		}
	}
}

func TestRankIsDescending(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	reg := mustRegistry(t, ids...)
	c := cache.Cache{}
	for _, id := range ids {
		c[id] = cache.Entry{Examples: []cache.Example{
			{Text: id + "1", Embedding: []float32{float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())}},
			{Text: id + "2", Embedding: []float32{float32(rng.NormFloat64()), float32(rng.NormFloat64()), float32(rng.NormFloat64())}},
		}}
	}

	got := Rank([]float32{0.2, -0.4, 0.9}, reg, c)
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("ranking not descending at %d: %v < %v", i, got[i-1].Score, got[i].Score)
		}
	}
}
