package rotation

import (
	"fmt"
	"math/rand"
	"testing"

	"proxywarden/internal/domain"
)

func setOf(proxies ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(proxies))
	for _, p := range proxies {
		set[p] = struct{}{}
	}
	return set
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s.%d.%d:80", prefix, i/250, i%250)
	}
	return out
}

func TestBuildQueuesExcludesAndDropsEmptySources(t *testing.T) {
	candidates := domain.CandidateSet{
		"https://b.test": setOf("1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:80"),
		"https://a.test": setOf("2.2.2.2:80"),
		"https://c.test": setOf(),
	}
	excluded := setOf("2.2.2.2:80")

	queues := BuildQueues(candidates, func(p string) bool {
		_, ok := excluded[p]
		return ok
	}, rand.New(rand.NewSource(1)))

	if len(queues) != 1 {
		t.Fatalf("BuildQueues returned %d queues, want 1", len(queues))
	}
	if queues[0].Source != "https://b.test" || queues[0].Len() != 2 {
		t.Fatalf("unexpected queue %s with %d items", queues[0].Source, queues[0].Len())
	}
	for _, item := range queues[0].items {
		if item == "2.2.2.2:80" {
			t.Fatal("excluded address left in queue")
		}
	}
}

func TestBuildQueuesIsDeterministicForSeed(t *testing.T) {
	candidates := domain.CandidateSet{
		"https://a.test": setOf(numbered("10.0", 40)...),
		"https://b.test": setOf(numbered("10.1", 40)...),
	}

	first := BuildQueues(candidates, nil, rand.New(rand.NewSource(7)))
	second := BuildQueues(candidates, nil, rand.New(rand.NewSource(7)))

	for i := range first {
		if first[i].Source != second[i].Source {
			t.Fatalf("queue %d source differs: %s vs %s", i, first[i].Source, second[i].Source)
		}
		for j := range first[i].items {
			if first[i].items[j] != second[i].items[j] {
				t.Fatalf("queue %d item %d differs for the same seed", i, j)
			}
		}
	}
}

func TestNextRoundShareBound(t *testing.T) {
	candidates := domain.CandidateSet{
		"https://big.test":   setOf(numbered("10.0", 120)...),
		"https://small.test": setOf(numbered("10.1", 7)...),
	}
	rng := rand.New(rand.NewSource(3))
	queues := BuildQueues(candidates, nil, rng)

	round, queues := NextRound(queues, 50, rng, nil)

	if got := round.PerSource["https://big.test"]; got != 50 {
		t.Fatalf("big source share = %d, want 50", got)
	}
	if got := round.PerSource["https://small.test"]; got != 7 {
		t.Fatalf("small source share = %d, want its whole residue of 7", got)
	}
	if len(round.Entries) != 57 {
		t.Fatalf("round size = %d, want 57", len(round.Entries))
	}
	if len(queues) != 1 || queues[0].Source != "https://big.test" || queues[0].Len() != 70 {
		t.Fatalf("drained queue not removed or wrong remainder: %d queues", len(queues))
	}

	counts := make(map[string]int)
	for _, e := range round.Entries {
		counts[e.Source]++
	}
	if counts["https://big.test"] != 50 || counts["https://small.test"] != 7 {
		t.Fatalf("entries attributed wrongly: %v", counts)
	}
}

func TestNextRoundAdmitDoesNotConsumeShare(t *testing.T) {
	queues := []*Queue{{Source: "https://a.test", items: []string{"1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:80", "4.4.4.4:80"}}}

	round, remaining := NextRound(queues, 2, rand.New(rand.NewSource(1)), func(p string) bool {
		return p != "1.1.1.1:80"
	})

	if len(round.Entries) != 2 {
		t.Fatalf("round size = %d, want 2", len(round.Entries))
	}
	for _, e := range round.Entries {
		if e.Proxy == "1.1.1.1:80" {
			t.Fatal("rejected address was dispatched")
		}
	}
	if len(remaining) != 1 || remaining[0].Len() != 1 {
		t.Fatalf("expected one address left in the queue")
	}
}

func TestNextRoundMinimumBatchSize(t *testing.T) {
	queues := []*Queue{{Source: "https://a.test", items: []string{"1.1.1.1:80", "2.2.2.2:80"}}}

	round, remaining := NextRound(queues, 0, rand.New(rand.NewSource(1)), nil)

	if len(round.Entries) != 1 || len(remaining) != 1 {
		t.Fatalf("batch size 0 should behave as 1, got %d entries", len(round.Entries))
	}
}
