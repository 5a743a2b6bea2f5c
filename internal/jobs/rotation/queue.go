package rotation

import (
	"math/rand"
	"sort"

	"proxywarden/internal/domain"
)

// Queue holds the not yet dispatched candidates of one source in the order
// they will be handed out.
type Queue struct {
	Source string
	items  []string
}

func (q *Queue) Len() int {
	return len(q.items)
}

// BuildQueues turns a candidate set into per-source queues. Addresses for
// which exclude returns true are left out, sources with nothing left are
// dropped and each remaining queue is shuffled independently. Queues come
// back ordered by source URL.
func BuildQueues(candidates domain.CandidateSet, exclude func(string) bool, rng *rand.Rand) []*Queue {
	urls := make([]string, 0, len(candidates))
	for url := range candidates {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	queues := make([]*Queue, 0, len(urls))
	for _, url := range urls {
		items := make([]string, 0, len(candidates[url]))
		for proxy := range candidates[url] {
			if exclude != nil && exclude(proxy) {
				continue
			}
			items = append(items, proxy)
		}
		if len(items) == 0 {
			continue
		}

		// Stable base order for seeded shuffles.
		sort.Strings(items)
		rng.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})

		queues = append(queues, &Queue{Source: url, items: items})
	}

	return queues
}

type Entry struct {
	Proxy  string
	Source string
}

type Round struct {
	Entries   []Entry
	PerSource map[string]int
}

// NextRound takes up to batchSize admitted addresses from the front of every
// queue and shuffles them together. admit is asked about every dequeued
// address in order; rejected addresses are discarded without using up the
// source's share. The second return value holds the queues that still have
// items.
func NextRound(queues []*Queue, batchSize int, rng *rand.Rand, admit func(string) bool) (Round, []*Queue) {
	if batchSize < 1 {
		batchSize = 1
	}

	round := Round{PerSource: make(map[string]int, len(queues))}
	remaining := make([]*Queue, 0, len(queues))

	for _, q := range queues {
		taken := 0
		for taken < batchSize && len(q.items) > 0 {
			proxy := q.items[0]
			q.items = q.items[1:]
			if admit != nil && !admit(proxy) {
				continue
			}
			round.Entries = append(round.Entries, Entry{Proxy: proxy, Source: q.Source})
			taken++
		}
		if taken > 0 {
			round.PerSource[q.Source] = taken
		}
		if len(q.items) > 0 {
			remaining = append(remaining, q)
		}
	}

	rng.Shuffle(len(round.Entries), func(i, j int) {
		round.Entries[i], round.Entries[j] = round.Entries[j], round.Entries[i]
	})

	return round, remaining
}
