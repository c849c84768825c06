package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/brunobiangulo/legalgraph/store"
)

// MaxTraversalDepth caps Traverse.
const MaxTraversalDepth = 5

// Neighborhood is the part of the law graph within some hops of a law.
type Neighborhood struct {
	Root  int64                `json:"root"`
	Depth int                  `json:"depth"`
	Laws  []store.Law          `json:"laws"`
	Edges []store.Relationship `json:"edges"`
}

// Traverse walks relationships in both directions from lawID, breadth
// first, up to maxDepth hops.
func Traverse(ctx context.Context, s *store.Store, lawID int64, maxDepth int) (*Neighborhood, error) {
	if _, err := s.GetLaw(ctx, lawID); err != nil {
		return nil, fmt.Errorf("graph.Traverse: root law %d: %w", lawID, err)
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	visited := map[int64]bool{lawID: true}
	edgeSeen := make(map[int64]bool)
	var edges []store.Relationship
	frontier := []int64{lawID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		rels, err := s.RelationshipsTouching(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("graph.Traverse: loading relationships: %w", err)
		}
		var next []int64
		for _, r := range rels {
			if !edgeSeen[r.ID] {
				edgeSeen[r.ID] = true
				edges = append(edges, r)
			}
			for _, id := range []int64{r.SourceLawID, r.TargetLawID} {
				if !visited[id] {
					visited[id] = true
					next = append(next, id)
				}
			}
		}
		frontier = next
	}

	ids := make([]int64, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	laws, err := s.GetLawsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("graph.Traverse: loading laws: %w", err)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	return &Neighborhood{Root: lawID, Depth: maxDepth, Laws: laws, Edges: edges}, nil
}
