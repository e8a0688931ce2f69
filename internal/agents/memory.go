// Agent memory stream: notable decisions an evacuee made, kept for the
// agent detail view and post-run inspection.
package agents

import (
	"fmt"
	"sort"
)

const MaxMemories = 20

// Memory records a notable decision or observation.
type Memory struct {
	Tick       uint64  `json:"tick"`
	Content    string  `json:"content"`
	Importance float32 `json:"importance"` // 0.0–1.0
}

// AddMemory appends a memory to the agent's stream. When full, drops the
// lowest-importance memory to make room.
func AddMemory(a *Agent, tick uint64, content string, importance float32) {
	m := Memory{Tick: tick, Content: content, Importance: importance}

	if len(a.Memories) < MaxMemories {
		a.Memories = append(a.Memories, m)
		return
	}

	minIdx := 0
	for i := 1; i < len(a.Memories); i++ {
		if a.Memories[i].Importance < a.Memories[minIdx].Importance {
			minIdx = i
		}
	}
	if m.Importance >= a.Memories[minIdx].Importance {
		a.Memories[minIdx] = m
	}
}

func remember(a *Agent, tick uint64, importance float32, format string, args ...any) {
	AddMemory(a, tick, fmt.Sprintf(format, args...), importance)
}

// RecentMemories returns the most recent N memories ordered by tick descending.
func RecentMemories(a *Agent, count int) []Memory {
	if len(a.Memories) == 0 {
		return nil
	}

	sorted := make([]Memory, len(a.Memories))
	copy(sorted, a.Memories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tick > sorted[j].Tick
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
