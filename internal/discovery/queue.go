package discovery

import (
	"math/rand"
	"sort"
)

// Queue holds the candidates still to be tried.
//
// It is a set: pushing a pending candidate is a no-op, and a candidate that
// was already popped is never handed out again during the same run.
// Not safe for concurrent use; the crawler owns it.
type Queue struct {
	pending []string
	members map[string]struct{}
	tried   map[string]struct{}
	rng     *rand.Rand
}

// NewQueue creates an empty queue. rng shuffles seeds; nil uses a time-seeded source.
func NewQueue(rng *rand.Rand) *Queue {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Queue{
		members: make(map[string]struct{}),
		tried:   make(map[string]struct{}),
		rng:     rng,
	}
}

// Seed adds the initial candidates in random order.
func (q *Queue) Seed(candidates []string) {
	seeds := make([]string, len(candidates))
	copy(seeds, candidates)
	q.rng.Shuffle(len(seeds), func(i, j int) { seeds[i], seeds[j] = seeds[j], seeds[i] })
	for _, c := range seeds {
		q.Push(c)
	}
}

// Push adds a candidate. Returns false if it is pending, already tried or empty.
func (q *Queue) Push(candidate string) bool {
	if candidate == "" {
		return false
	}
	if _, ok := q.members[candidate]; ok {
		return false
	}
	if _, ok := q.tried[candidate]; ok {
		return false
	}
	q.members[candidate] = struct{}{}
	q.pending = append(q.pending, candidate)
	return true
}

// PushAll adds candidates and returns how many were new.
func (q *Queue) PushAll(candidates []string) int {
	added := 0
	for _, c := range candidates {
		if q.Push(c) {
			added++
		}
	}
	return added
}

// Pop removes and returns a candidate. ok is false when the queue is empty.
func (q *Queue) Pop() (candidate string, ok bool) {
	n := len(q.pending)
	if n == 0 {
		return "", false
	}
	candidate = q.pending[n-1]
	q.pending = q.pending[:n-1]
	delete(q.members, candidate)
	q.tried[candidate] = struct{}{}
	return candidate, true
}

// Requeue puts back a popped candidate whose processing did not complete.
func (q *Queue) Requeue(candidate string) {
	delete(q.tried, candidate)
	q.Push(candidate)
}

// Len returns the number of pending candidates.
func (q *Queue) Len() int {
	return len(q.pending)
}

// Remaining returns the pending candidates, sorted.
func (q *Queue) Remaining() []string {
	out := make([]string, len(q.pending))
	copy(out, q.pending)
	sort.Strings(out)
	return out
}
