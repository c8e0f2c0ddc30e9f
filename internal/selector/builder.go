package selector

import (
	"github.com/abhisek/adaptest/internal/bank"
	"github.com/abhisek/adaptest/internal/irt"
)

// builder accumulates a quiz while enforcing size, uniqueness, and the
// per-topic cap.
type builder struct {
	size     int
	topicCap int
	picked   []Selected
	chosen   map[string]bool
	perTopic map[string]int
}

func newBuilder(size, perTopicCap int) *builder {
	return &builder{
		size:     size,
		topicCap: perTopicCap,
		chosen:   make(map[string]bool),
		perTopic: make(map[string]int),
	}
}

func (b *builder) full() bool {
	return len(b.picked) >= b.size
}

func (b *builder) remaining() int {
	return b.size - len(b.picked)
}

func (b *builder) add(it bank.Item, p *pool, reason Reason, capped bool) bool {
	if b.full() || b.chosen[it.ID] {
		return false
	}
	if capped && b.perTopic[p.topic] >= b.topicCap {
		return false
	}
	b.chosen[it.ID] = true
	b.perTopic[p.topic]++
	b.picked = append(b.picked, Selected{
		Item:   it,
		Reason: reason,
		Info:   irt.FisherInformation(p.rank, it.Params),
	})
	return true
}

// roundRobin takes the best remaining candidate from each pool in turn
// until quota items were added or no pool can contribute. Items of a
// widened pool are tagged as fallback.
func (b *builder) roundRobin(pools []*pool, candidates func(*pool) []bank.Item, quota int, reason Reason, capped bool) int {
	if quota <= 0 || len(pools) == 0 {
		return 0
	}
	lists := make([][]bank.Item, len(pools))
	for i, p := range pools {
		lists[i] = candidates(p)
	}
	cursors := make([]int, len(pools))

	added := 0
	for progress := true; progress && added < quota && !b.full(); {
		progress = false
		for i, p := range pools {
			if added >= quota || b.full() {
				break
			}
			if capped && b.perTopic[p.topic] >= b.topicCap {
				continue
			}
			for cursors[i] < len(lists[i]) {
				it := lists[i][cursors[i]]
				cursors[i]++
				r := reason
				if p.widened {
					r = ReasonFallback
				}
				if b.add(it, p, r, capped) {
					added++
					progress = true
					break
				}
			}
		}
	}
	return added
}
