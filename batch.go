package meshopt

import (
	"fmt"
	"sort"
)

// BatchKey identifies the rendering resources a group of entities shares.
// Entities with equal keys can be drawn together.
type BatchKey struct {
	MaterialKey string
	TextureKey  string
}

// BatchCandidate is one visible, loaded entity offered to the planner.
type BatchCandidate struct {
	Entity      EntityId
	Key         BatchKey
	VertexCount int
}

// BatchGroup is one planned draw batch.
type BatchGroup struct {
	Key           BatchKey
	Entities      []EntityId
	VertexCount   int
	InstanceCount int
}

// BatchPlan is the output of one planning pass plus its observability
// metric.
type BatchPlan struct {
	Groups         []BatchGroup
	DrawCallsSaved int // naive per-entity draws minus planned groups
}

// BatcherConfig bounds how large one group may grow.
type BatcherConfig struct {
	VertexLimit   int `yaml:"vertex_limit"`
	InstanceLimit int `yaml:"instance_limit"`
}

func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		VertexLimit:   65536,
		InstanceLimit: 1024,
	}
}

// PlanBatches groups candidates by (material, texture) and splits each bucket
// into groups that respect the vertex and instance limits. Within a bucket
// the heaviest candidates are placed first into whichever open group has the
// most remaining vertex capacity, which keeps the group count low. A single
// candidate over the vertex limit gets a group of its own rather than being
// dropped.
func PlanBatches(candidates []BatchCandidate, cfg BatcherConfig) (*BatchPlan, error) {
	if cfg.VertexLimit <= 0 {
		return nil, fmt.Errorf("batch: vertex limit %d must be > 0", cfg.VertexLimit)
	}
	if cfg.InstanceLimit <= 0 {
		return nil, fmt.Errorf("batch: instance limit %d must be > 0", cfg.InstanceLimit)
	}

	buckets := make(map[BatchKey][]BatchCandidate)
	var keys []BatchKey
	for _, c := range candidates {
		if _, ok := buckets[c.Key]; !ok {
			keys = append(keys, c.Key)
		}
		buckets[c.Key] = append(buckets[c.Key], c)
	}

	// Deterministic output order regardless of map iteration.
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].MaterialKey != keys[b].MaterialKey {
			return keys[a].MaterialKey < keys[b].MaterialKey
		}
		return keys[a].TextureKey < keys[b].TextureKey
	})

	plan := &BatchPlan{}
	for _, key := range keys {
		bucket := buckets[key]
		sort.SliceStable(bucket, func(a, b int) bool {
			return bucket[a].VertexCount > bucket[b].VertexCount
		})

		var open []*BatchGroup
		for _, c := range bucket {
			best := -1
			bestRemaining := -1
			for i, g := range open {
				if g.InstanceCount >= cfg.InstanceLimit {
					continue
				}
				remaining := cfg.VertexLimit - g.VertexCount
				if remaining < c.VertexCount {
					continue
				}
				if remaining > bestRemaining {
					bestRemaining = remaining
					best = i
				}
			}

			if best == -1 {
				open = append(open, &BatchGroup{Key: key})
				best = len(open) - 1
			}
			g := open[best]
			g.Entities = append(g.Entities, c.Entity)
			g.VertexCount += c.VertexCount
			g.InstanceCount++
		}

		for _, g := range open {
			plan.Groups = append(plan.Groups, *g)
		}
	}

	plan.DrawCallsSaved = len(candidates) - len(plan.Groups)
	if plan.DrawCallsSaved < 0 {
		plan.DrawCallsSaved = 0
	}
	return plan, nil
}
