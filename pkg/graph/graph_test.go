package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/polyglot/pkg/backend"
)

func desc(name string, grade int, pairs ...string) backend.Descriptor {
	d := backend.Descriptor{Name: name, QualityGrade: grade}
	for _, s := range pairs {
		p, err := backend.ParseLanguagePair(s)
		if err != nil {
			panic(err)
		}
		d.Pairs = append(d.Pairs, p)
	}
	return d
}

// scenario returns the two backends used across the routing tests.
func scenario() *Graph {
	return New(
		desc("A", 1, "de-en", "en-fr", "fr-de", "hu-de"),
		desc("B", 2, "de-en", "en-es", "es-de"),
	)
}

func TestAddBackendTieBreak(t *testing.T) {
	g := New(desc("first", 2, "de-en"), desc("second", 2, "de-en"))
	owner, ok := g.Owner("de", "en")
	require.True(t, ok)
	assert.Equal(t, "first", owner, "equal grade keeps the earlier backend")

	g.AddBackend(desc("better", 1, "de-en"))
	owner, _ = g.Owner("de", "en")
	assert.Equal(t, "better", owner)

	g.AddBackend(desc("worse", 5, "de-en"))
	owner, _ = g.Owner("de", "en")
	assert.Equal(t, "better", owner)
}

func TestContains(t *testing.T) {
	g := scenario()
	for _, l := range []string{"de", "en", "fr", "hu", "es"} {
		assert.True(t, g.Contains(l), l)
	}
	assert.False(t, g.Contains("it"))
	assert.Equal(t, []string{"de", "en", "es", "fr", "hu"}, g.Languages())
}

func TestFindOptimalPath(t *testing.T) {
	g := scenario()

	tests := []struct {
		name     string
		src, tgt string
		want     string
		weight   int
	}{
		{"prefers better grade on shared leg", "de", "es", "de --|A|--> en --|B|--> es", 3},
		{"single backend route", "en", "de", "en --|A|--> fr --|A|--> de", 2},
		{"direct edge", "hu", "de", "hu --|A|--> de", 1},
		{"long route", "hu", "es", "hu --|A|--> de --|A|--> en --|B|--> es", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := g.FindOptimalPath(tt.src, tt.tgt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
			assert.Equal(t, tt.weight, p.Weight())

			assert.Equal(t, tt.src, p[0].Source)
			assert.Equal(t, tt.tgt, p[len(p)-1].Target)
			visited := map[string]bool{tt.src: true}
			for i, h := range p {
				if i > 0 {
					assert.Equal(t, p[i-1].Target, h.Source)
				}
				assert.False(t, visited[h.Target], "path revisits %s", h.Target)
				visited[h.Target] = true
			}
		})
	}
}

func TestFindOptimalPathSameLanguage(t *testing.T) {
	p, err := scenario().FindOptimalPath("de", "de")
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestFindOptimalPathNotFound(t *testing.T) {
	g := scenario()

	_, err := g.FindOptimalPath("de", "hu")
	assert.True(t, errors.Is(err, ErrPathNotFound), "nothing translates into hu")

	_, err = g.FindOptimalPath("it", "de")
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = g.FindOptimalPath("de", "it")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestFindOptimalPathMinimumWeight(t *testing.T) {
	// a->f directly costs 10, the detour through b, c and e costs 4.
	g := New(
		desc("slow", 10, "a-f"),
		desc("fast", 1, "a-b", "b-c", "c-e", "e-f", "b-d"),
		desc("mid", 3, "d-f"),
	)
	p, err := g.FindOptimalPath("a", "f")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Weight())
	assert.Equal(t, "a --|fast|--> b --|fast|--> c --|fast|--> e --|fast|--> f", p.String())
}

func TestStronglyConnectedComponent(t *testing.T) {
	g := New(
		desc("x", 1, "a-b", "b-c", "c-a", "c-d", "e-a"),
	)
	assert.Equal(t, []string{"a", "b", "c"}, g.StronglyConnectedComponent("a"))
	assert.Equal(t, []string{"d"}, g.StronglyConnectedComponent("d"))
	assert.Empty(t, g.StronglyConnectedComponent("zz"))
}

func TestStronglyConnectedComponentSymmetry(t *testing.T) {
	g := scenario()
	component := g.StronglyConnectedComponent("en")
	assert.Equal(t, []string{"de", "en", "es", "fr"}, component)

	in := make(map[string]bool)
	for _, x := range component {
		in[x] = true
		_, err := g.FindOptimalPath("en", x)
		assert.NoError(t, err)
		_, err = g.FindOptimalPath(x, "en")
		assert.NoError(t, err)
	}
	for _, x := range g.Languages() {
		if in[x] {
			continue
		}
		_, toErr := g.FindOptimalPath("en", x)
		_, fromErr := g.FindOptimalPath(x, "en")
		assert.True(t, toErr != nil || fromErr != nil, "%s is mutually reachable but missing", x)
	}
}

func TestDefaultCatalogRouting(t *testing.T) {
	c := backend.DefaultCatalog()
	descs := c.Descriptors([]string{"nlb-200", "opus-mt", "wmt-19"})
	require.Len(t, descs, 3)
	g := New(descs...)

	owner, ok := g.Owner("de", "en")
	require.True(t, ok)
	assert.Equal(t, "wmt-19", owner, "grade 1 beats the grade 2 models")
	owner, _ = g.Owner("en", "de")
	assert.Equal(t, "wmt-19", owner)

	owner, _ = g.Owner("en", "fr")
	assert.Equal(t, "nlb-200", owner, "equal grades keep the backend listed first")

	owner, ok = g.Owner("en", "ro")
	require.True(t, ok)
	assert.Equal(t, "opus-mt", owner, "ro is only served by opus-mt")

	path, err := g.FindOptimalPath("de", "en")
	require.NoError(t, err)
	assert.Equal(t, "de --|wmt-19|--> en", path.String())
}
