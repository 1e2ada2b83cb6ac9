package repo

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// commitGraph is an in-memory index of every commit reachable from the view's
// heads, with a parent -> children edge map. The graph is acyclic by
// construction: parents always precede children in write order.
type commitGraph struct {
	commits  map[gocid.Cid]*Commit
	children map[gocid.Cid][]gocid.Cid
}

func (tx *Transaction) loadGraph() (*commitGraph, error) {
	commits, err := tx.repo.reachableCommits(tx.view)
	if err != nil {
		return nil, err
	}
	g := &commitGraph{commits: commits, children: map[gocid.Cid][]gocid.Cid{}}
	for id, c := range commits {
		for _, p := range c.Parents {
			g.children[p] = append(g.children[p], id)
		}
	}
	for p := range g.children {
		sortIDs(g.children[p])
	}
	return g, nil
}

// descendants returns every commit that transitively has one of the roots as
// an ancestor. The roots themselves are excluded.
func (g *commitGraph) descendants(roots []gocid.Cid) map[gocid.Cid]bool {
	out := map[gocid.Cid]bool{}
	queue := append([]gocid.Cid(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range g.children[id] {
			if !out[child] {
				out[child] = true
				queue = append(queue, child)
			}
		}
	}
	return out
}

// TransformDescendants visits every descendant of roots exactly once, in an
// order where each commit comes after all of its rewritten ancestors
// (parents-before-children; ties broken by object name so the order is
// deterministic). Each visit gets a Rewriter whose parents are already
// remapped through the transaction's accumulated rewrites; the callback must
// finish by writing the rebased commit, which extends the remap so
// multi-level cascades chain. Any error aborts the whole walk, and with it
// the enclosing transaction.
func (tx *Transaction) TransformDescendants(roots []gocid.Cid, fn func(*Rewriter) error) (int, error) {
	graph, err := tx.loadGraph()
	if err != nil {
		return 0, fmt.Errorf("transform descendants: %w", err)
	}
	targets := graph.descendants(roots)

	// Kahn's algorithm over the descendant subgraph. Only edges between two
	// descendants count toward the in-degree; edges from the roots (or from
	// untouched commits) are already satisfied.
	indegree := map[gocid.Cid]int{}
	for id := range targets {
		for _, p := range graph.commits[id].Parents {
			if targets[p] {
				indegree[id]++
			}
		}
	}
	var ready []gocid.Cid
	for id := range targets {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sortIDs(ready)

	count := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]

		rw := tx.newRewriter(graph.commits[id])
		if err := fn(rw); err != nil {
			return 0, fmt.Errorf("rebase %s: %w", store.ShortName(id), err)
		}
		count++

		var unblocked []gocid.Cid
		for _, child := range graph.children[id] {
			if !targets[child] {
				continue
			}
			indegree[child]--
			if indegree[child] == 0 {
				unblocked = append(unblocked, child)
			}
		}
		if len(unblocked) > 0 {
			ready = append(ready, unblocked...)
			sortIDs(ready)
		}
	}

	if count != len(targets) {
		return 0, fmt.Errorf("transform descendants: %d of %d commits unreachable in topological order", len(targets)-count, len(targets))
	}
	return count, nil
}
