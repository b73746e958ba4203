package domain

import (
	"slices"
	"strings"
	"time"
)

// Dependency is a directed edge: ActivityID cannot finish before DependsOnID.
type Dependency struct {
	ActivityID  string
	DependsOnID string
	CreatedAt   time.Time
}

// NewDependency validates and builds an edge. Self-loops are rejected.
func NewDependency(activityID, dependsOnID string, now time.Time) (Dependency, error) {
	activityID = strings.TrimSpace(activityID)
	dependsOnID = strings.TrimSpace(dependsOnID)
	if activityID == "" || dependsOnID == "" {
		return Dependency{}, ErrInvalidID
	}
	if activityID == dependsOnID {
		return Dependency{}, ErrSelfDependency
	}
	return Dependency{
		ActivityID:  activityID,
		DependsOnID: dependsOnID,
		CreatedAt:   now.UTC(),
	}, nil
}

// DependencyGraph indexes edges in both directions.
type DependencyGraph struct {
	prerequisites map[string]map[string]struct{}
	dependents    map[string]map[string]struct{}
}

// NewDependencyGraph builds a graph from edges.
func NewDependencyGraph(edges []Dependency) *DependencyGraph {
	g := &DependencyGraph{
		prerequisites: map[string]map[string]struct{}{},
		dependents:    map[string]map[string]struct{}{},
	}
	for _, edge := range edges {
		g.Add(edge)
	}
	return g
}

// Add inserts one edge. Duplicates are ignored.
func (g *DependencyGraph) Add(edge Dependency) {
	addEdge(g.prerequisites, edge.ActivityID, edge.DependsOnID)
	addEdge(g.dependents, edge.DependsOnID, edge.ActivityID)
}

// Remove deletes one edge if present.
func (g *DependencyGraph) Remove(activityID, dependsOnID string) {
	delete(g.prerequisites[activityID], dependsOnID)
	delete(g.dependents[dependsOnID], activityID)
}

// HasEdge reports whether activityID already depends on dependsOnID.
func (g *DependencyGraph) HasEdge(activityID, dependsOnID string) bool {
	_, ok := g.prerequisites[activityID][dependsOnID]
	return ok
}

// Prerequisites returns the sorted ids activityID depends on.
func (g *DependencyGraph) Prerequisites(activityID string) []string {
	return sortedKeys(g.prerequisites[activityID])
}

// Dependents returns the sorted ids that depend on activityID.
func (g *DependencyGraph) Dependents(activityID string) []string {
	return sortedKeys(g.dependents[activityID])
}

// WouldCycle reports whether adding activityID -> dependsOnID closes a cycle, which
// happens when activityID is already reachable from dependsOnID through prerequisites.
func (g *DependencyGraph) WouldCycle(activityID, dependsOnID string) bool {
	if activityID == dependsOnID {
		return true
	}
	seen := map[string]struct{}{}
	stack := []string{dependsOnID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == activityID {
			return true
		}
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}
		for next := range g.prerequisites[current] {
			stack = append(stack, next)
		}
	}
	return false
}

func addEdge(index map[string]map[string]struct{}, from, to string) {
	set, ok := index[from]
	if !ok {
		set = map[string]struct{}{}
		index[from] = set
	}
	set[to] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}
