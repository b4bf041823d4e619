// Package relationship implements the Relationship Index: file-to-file
// edges precomputed from analysis history by bucketing files under a
// shared tag or entity, generating all unordered pairs per bucket, and
// keeping pairs that co-occur at least twice.
package relationship

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	atomicfile "github.com/natefinch/atomic"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
)

var log = logctx.For("relationship")

// MaxEdges caps the persisted edge list.
const MaxEdges = 2000

// MinWeight is the co-occurrence threshold below which a pair is
// dropped.
const MinWeight = 2

// Edge is a co-occurrence relationship between two files. Source is
// always lexically less than
// Target.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// SourceRecord is one file's contribution to the index: its canonical
// id and the tags/entities (already lowercased by the caller is not
// required — buildEdges lowercases) it carries.
type SourceRecord struct {
	FileID   string
	Concepts []string
}

// file is the on-disk shape of knowledge-relationships.json.
type file struct {
	UpdatedAt       time.Time `json:"updatedAt"`
	SourceUpdatedAt time.Time `json:"sourceUpdatedAt"`
	Edges           []Edge    `json:"edges"`
}

// Index holds the current edge list and rebuilds it only when the
// source history's updatedAt changes.
type Index struct {
	path string
	clk  clock.Clock

	mu              sync.RWMutex
	edges           []Edge
	sourceUpdatedAt time.Time
}

// Open loads path if it exists, starting empty otherwise. A corrupt
// sidecar is renamed aside with a timestamp suffix, matching the
// queue package's sidecar-recovery convention.
func Open(path string, clk clock.Clock) (*Index, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	idx := &Index{path: path, clk: clk}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("relationship: read %s: %w", path, err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", path, clk.Now().UnixNano())
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			log.WithField("error", renameErr).Warn("failed to rename corrupt relationship sidecar")
		} else {
			log.WithField("corrupt_path", corruptPath).Warn("relationship sidecar corrupt, reset")
		}
		return idx, nil
	}

	idx.edges = f.Edges
	idx.sourceUpdatedAt = f.SourceUpdatedAt
	return idx, nil
}

// Edges returns a snapshot of the current edge list.
func (idx *Index) Edges() []Edge {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Edge, len(idx.edges))
	copy(out, idx.edges)
	return out
}

// NeedsRebuild reports whether sourceUpdatedAt differs from what the
// index last rebuilt from.
func (idx *Index) NeedsRebuild(sourceUpdatedAt time.Time) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return !sourceUpdatedAt.Equal(idx.sourceUpdatedAt)
}

// Rebuild recomputes the edge list from records and persists it,
// unless sourceUpdatedAt matches what's already built.
func (idx *Index) Rebuild(records []SourceRecord, sourceUpdatedAt time.Time) error {
	if !idx.NeedsRebuild(sourceUpdatedAt) {
		return nil
	}

	edges := buildEdges(records)

	idx.mu.Lock()
	idx.edges = edges
	idx.sourceUpdatedAt = sourceUpdatedAt
	idx.mu.Unlock()

	return idx.persist(sourceUpdatedAt, edges)
}

func (idx *Index) persist(sourceUpdatedAt time.Time, edges []Edge) error {
	f := file{UpdatedAt: idx.clk.Now(), SourceUpdatedAt: sourceUpdatedAt, Edges: edges}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("relationship: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("relationship: mkdir: %w", err)
	}
	return atomicfile.WriteFile(idx.path, bytes.NewReader(data))
}

// buildEdges buckets records by shared concept, generates all
// unordered pairs per bucket, tallies co-occurrence counts across all
// buckets, drops pairs below MinWeight, sorts by weight descending
// (ties broken by source then target for determinism), and caps the
// result at MaxEdges.
func buildEdges(records []SourceRecord) []Edge {
	buckets := make(map[string]map[string]bool)
	for _, rec := range records {
		if rec.FileID == "" {
			continue
		}
		for _, concept := range rec.Concepts {
			concept = strings.ToLower(strings.TrimSpace(concept))
			if concept == "" {
				continue
			}
			if buckets[concept] == nil {
				buckets[concept] = make(map[string]bool)
			}
			buckets[concept][rec.FileID] = true
		}
	}

	type pairKey struct{ a, b string }
	weights := make(map[pairKey]int)

	for _, ids := range buckets {
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				weights[pairKey{sorted[i], sorted[j]}]++
			}
		}
	}

	edges := make([]Edge, 0, len(weights))
	for pair, weight := range weights {
		if weight < MinWeight {
			continue
		}
		edges = append(edges, Edge{
			ID:     edgeID(pair.a, pair.b),
			Source: pair.a,
			Target: pair.b,
			Weight: weight,
		})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	if len(edges) > MaxEdges {
		edges = edges[:MaxEdges]
	}
	return edges
}

// edgeID deterministically names an edge from its (already-sorted)
// endpoints, so rebuilding the same history produces stable ids.
func edgeID(source, target string) string {
	sum := sha256.Sum256([]byte(source + "|" + target))
	return "edge:" + hex.EncodeToString(sum[:8])
}
