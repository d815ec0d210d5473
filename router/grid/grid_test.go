package grid_test

import (
	"testing"

	"github.com/katalvlaran/vlsiflow/router/grid"
	"github.com/stretchr/testify/require"
)

func TestSearchFindsStraightLinePath(t *testing.T) {
	g := grid.New(10, 10, 2, []grid.Direction{grid.DirUnknown, grid.DirHorizontal})
	start := grid.Node{X: 0, Y: 0, Z: 1}
	target := grid.Node{X: 5, Y: 0, Z: 1}

	res := g.Search(g.NewScratch(), []grid.Node{start}, target, grid.SearchOptions{
		Window:          g.WindowAround([]grid.Node{start, target}, 4),
		Guide:           grid.NoGuide{},
		HeuristicWeight: 1,
		MaxExpansions:   10000,
	})
	require.True(t, res.Found)
	require.Equal(t, start, res.Path[0])
	require.Equal(t, target, res.Path[len(res.Path)-1])
}

func TestSearchRespectsObstacle(t *testing.T) {
	g := grid.New(5, 5, 1, []grid.Direction{grid.DirUnknown})
	for y := 0; y < 5; y++ {
		if y != 4 {
			g.SetObstacle(grid.Node{X: 2, Y: y, Z: 0}, true)
		}
	}
	start := grid.Node{X: 0, Y: 0, Z: 0}
	target := grid.Node{X: 4, Y: 0, Z: 0}
	res := g.Search(g.NewScratch(), []grid.Node{start}, target, grid.SearchOptions{
		Window:          g.WindowAround([]grid.Node{start, target}, 4),
		Guide:           grid.NoGuide{},
		HeuristicWeight: 1,
		MaxExpansions:   10000,
	})
	require.True(t, res.Found)
	for _, n := range res.Path {
		require.False(t, g.IsObstacle(n))
	}
}

func TestSearchFailsWhenExpansionBudgetExhausted(t *testing.T) {
	g := grid.New(50, 50, 1, []grid.Direction{grid.DirUnknown})
	start := grid.Node{X: 0, Y: 0, Z: 0}
	target := grid.Node{X: 49, Y: 49, Z: 0}
	res := g.Search(g.NewScratch(), []grid.Node{start}, target, grid.SearchOptions{
		Window:          g.WindowAround([]grid.Node{start, target}, 4),
		Guide:           grid.NoGuide{},
		HeuristicWeight: 1,
		MaxExpansions:   1,
	})
	require.False(t, res.Found)
}

func TestStrictGuideSkipsOutOfGuideNodes(t *testing.T) {
	g := grid.New(5, 5, 1, []grid.Direction{grid.DirUnknown})
	start := grid.Node{X: 0, Y: 0, Z: 0}
	target := grid.Node{X: 4, Y: 0, Z: 0}

	noAccess := emptyGuide{}
	res := g.Search(g.NewScratch(), []grid.Node{start}, target, grid.SearchOptions{
		Window:          g.WindowAround([]grid.Node{start, target}, 4),
		Guide:           noAccess,
		StrictGuide:     true,
		HeuristicWeight: 1,
		MaxExpansions:   10000,
	})
	require.False(t, res.Found)
}

type emptyGuide struct{}

func (emptyGuide) InGuide(grid.Node) bool { return false }

func TestConcurrentSearchesUseIndependentScratch(t *testing.T) {
	g := grid.New(20, 20, 1, []grid.Direction{grid.DirUnknown})
	pairs := [][2]grid.Node{
		{{X: 0, Y: 0}, {X: 19, Y: 0}},
		{{X: 0, Y: 5}, {X: 19, Y: 5}},
		{{X: 0, Y: 10}, {X: 19, Y: 10}},
		{{X: 0, Y: 15}, {X: 19, Y: 15}},
	}
	results := make([]grid.Result, len(pairs))
	done := make(chan int, len(pairs))
	for i, pair := range pairs {
		go func(i int, start, target grid.Node) {
			sc := g.NewScratch()
			results[i] = g.Search(sc, []grid.Node{start}, target, grid.SearchOptions{
				Window:          g.WindowAround([]grid.Node{start, target}, 2),
				Guide:           grid.NoGuide{},
				HeuristicWeight: 1,
				MaxExpansions:   10000,
			})
			done <- i
		}(i, pair[0], pair[1])
	}
	for range pairs {
		<-done
	}
	for i, pair := range pairs {
		require.True(t, results[i].Found)
		require.Equal(t, pair[0], results[i].Path[0])
		require.Equal(t, pair[1], results[i].Path[len(results[i].Path)-1])
	}
}

func TestMultipleStartsPicksCheapest(t *testing.T) {
	g := grid.New(10, 10, 1, []grid.Direction{grid.DirUnknown})
	target := grid.Node{X: 5, Y: 5, Z: 0}
	starts := []grid.Node{{X: 0, Y: 0, Z: 0}, {X: 5, Y: 0, Z: 0}}
	res := g.Search(g.NewScratch(), starts, target, grid.SearchOptions{
		Window:          g.WindowAround(append(append([]grid.Node{}, starts...), target), 4),
		Guide:           grid.NoGuide{},
		HeuristicWeight: 1,
		MaxExpansions:   10000,
	})
	require.True(t, res.Found)
	require.Equal(t, starts[1], res.Path[0])
}
