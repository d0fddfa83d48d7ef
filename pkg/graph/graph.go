// Package graph builds the weighted directed language graph the router
// searches for translation paths.
//
// Every declared language pair of a backend becomes an edge weighted by the
// backend's quality grade. An edge is owned by exactly one backend: the one
// with the lowest grade for that pair. When two backends declare the same
// pair with the same grade, the backend added first keeps the edge.
//
// A Graph is built once and only read afterwards, so it is safe for
// concurrent queries once construction is done.
package graph

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dasmlab/polyglot/pkg/backend"
)

// ErrPathNotFound is returned when no translation path exists between two
// languages, including when either language is not in the graph.
var ErrPathNotFound = errors.New("path not found")

// Hop is one edge of a translation path together with the backend owning it.
type Hop struct {
	Source  string
	Target  string
	Backend string
	Grade   int
}

func (h Hop) String() string {
	return fmt.Sprintf("%s --|%s|--> %s", h.Source, h.Backend, h.Target)
}

// Path is an ordered list of hops. Hop i's target is hop i+1's source.
// An empty path means source and target are the same language.
type Path []Hop

// Weight is the sum of the grades along the path.
func (p Path) Weight() int {
	w := 0
	for _, h := range p {
		w += h.Grade
	}
	return w
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<empty>"
	}
	var b strings.Builder
	b.WriteString(p[0].Source)
	for _, h := range p {
		fmt.Fprintf(&b, " --|%s|--> %s", h.Backend, h.Target)
	}
	return b.String()
}

type edge struct {
	target  string
	backend string
	grade   int
}

// Graph is a directed multigraph reduced to at most one edge per ordered
// language pair.
type Graph struct {
	// out keeps edges per source in insertion order so searches are deterministic.
	out   map[string][]*edge
	in    map[string][]string
	nodes map[string]struct{}
}

// New creates a graph and adds the given backends in order.
func New(descs ...backend.Descriptor) *Graph {
	g := &Graph{
		out:   make(map[string][]*edge),
		in:    make(map[string][]string),
		nodes: make(map[string]struct{}),
	}
	for _, d := range descs {
		g.AddBackend(d)
	}
	return g
}

// AddBackend adds one edge per declared pair, replacing an existing edge
// only when d has a strictly better (lower) grade.
func (g *Graph) AddBackend(d backend.Descriptor) {
	for _, p := range d.Pairs {
		if e := g.edge(p.Source, p.Target); e != nil {
			if d.QualityGrade < e.grade {
				e.backend = d.Name
				e.grade = d.QualityGrade
			}
			continue
		}
		g.out[p.Source] = append(g.out[p.Source], &edge{
			target:  p.Target,
			backend: d.Name,
			grade:   d.QualityGrade,
		})
		g.in[p.Target] = append(g.in[p.Target], p.Source)
		g.nodes[p.Source] = struct{}{}
		g.nodes[p.Target] = struct{}{}
	}
}

func (g *Graph) edge(source, target string) *edge {
	for _, e := range g.out[source] {
		if e.target == target {
			return e
		}
	}
	return nil
}

// Contains reports whether the language appears in any edge.
func (g *Graph) Contains(language string) bool {
	_, ok := g.nodes[language]
	return ok
}

// Languages returns every node, sorted.
func (g *Graph) Languages() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Owner returns the backend owning the source->target edge.
func (g *Graph) Owner(source, target string) (string, bool) {
	e := g.edge(source, target)
	if e == nil {
		return "", false
	}
	return e.backend, true
}

// FindOptimalPath returns the path of minimum total grade from source to
// target using Dijkstra's algorithm. The path is recomputed on every call.
func (g *Graph) FindOptimalPath(source, target string) (Path, error) {
	if !g.Contains(source) || !g.Contains(target) {
		return nil, fmt.Errorf("%s to %s: %w", source, target, ErrPathNotFound)
	}
	if source == target {
		return Path{}, nil
	}

	dist := map[string]int{source: 0}
	prev := make(map[string]*Hop)
	done := make(map[string]bool)

	q := &queue{}
	heap.Push(q, &item{node: source})
	for q.Len() > 0 {
		cur := heap.Pop(q).(*item)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == target {
			break
		}
		for _, e := range g.out[cur.node] {
			d := cur.dist + e.grade
			if old, seen := dist[e.target]; seen && d >= old {
				continue
			}
			dist[e.target] = d
			prev[e.target] = &Hop{Source: cur.node, Target: e.target, Backend: e.backend, Grade: e.grade}
			heap.Push(q, &item{node: e.target, dist: d, seq: q.next()})
		}
	}

	if !done[target] {
		return nil, fmt.Errorf("%s to %s: %w", source, target, ErrPathNotFound)
	}
	var path Path
	for n := target; n != source; {
		h := prev[n]
		path = append(path, *h)
		n = h.Source
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// StronglyConnectedComponent returns the languages mutually reachable with
// root: reachable from root and able to reach root. The result is sorted
// and includes root itself. A root outside the graph yields an empty set.
func (g *Graph) StronglyConnectedComponent(root string) []string {
	if !g.Contains(root) {
		return []string{}
	}
	forward := g.reach(root, func(n string) []string {
		targets := make([]string, 0, len(g.out[n]))
		for _, e := range g.out[n] {
			targets = append(targets, e.target)
		}
		return targets
	})
	backward := g.reach(root, func(n string) []string { return g.in[n] })

	out := make([]string, 0, len(forward))
	for n := range forward {
		if backward[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) reach(root string, next func(string) []string) map[string]bool {
	seen := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range next(n) {
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
			}
		}
	}
	return seen
}

type item struct {
	node string
	dist int
	seq  int
}

// queue is a min-heap on distance; equal distances pop in push order.
type queue struct {
	items []*item
	seq   int
}

func (q *queue) next() int {
	q.seq++
	return q.seq
}

func (q *queue) Len() int { return len(q.items) }

func (q *queue) Less(i, j int) bool {
	if q.items[i].dist != q.items[j].dist {
		return q.items[i].dist < q.items[j].dist
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *queue) Push(x any) { q.items = append(q.items, x.(*item)) }

func (q *queue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}
