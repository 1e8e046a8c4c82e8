package render

import "github.com/loqalabs/loqa-present/internal/slide"

const (
	NodeWidth         = 150
	NodeHeight        = 60
	VerticalSpacing   = 70
	HorizontalSpacing = 50
)

// PlacedNode is a flowchart node with its top-left corner.
type PlacedNode struct {
	slide.Node
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Rank int     `json:"rank"`
}

// PlacedEdge runs from the bottom centre of one node to the top centre of
// another.
type PlacedEdge struct {
	slide.Edge
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	LabelX float64 `json:"labelX"`
	LabelY float64 `json:"labelY"`
}

// FlowLayout is a layered drawing of a flowchart.
type FlowLayout struct {
	Ranks  [][]string   `json:"ranks"`
	Nodes  []PlacedNode `json:"nodes"`
	Edges  []PlacedEdge `json:"edges"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
}

// Layout ranks nodes in topological layers: every node with
// no remaining incoming edge joins the next rank. Nodes caught in a cycle
// are placed together in a final rank. Edges naming unknown nodes are
// dropped.
func Layout(f slide.Flowchart) FlowLayout {
	if len(f.Nodes) == 0 {
		return FlowLayout{}
	}

	adj := make(map[string][]string, len(f.Nodes))
	inDegree := make(map[string]int, len(f.Nodes))
	byID := make(map[string]slide.Node, len(f.Nodes))
	for _, n := range f.Nodes {
		adj[n.ID] = nil
		inDegree[n.ID] = 0
		byID[n.ID] = n
	}
	for _, e := range f.Edges {
		if _, ok := byID[e.From]; !ok {
			continue
		}
		if _, ok := byID[e.To]; !ok {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		inDegree[e.To]++
	}

	var ranks [][]string
	placed := make(map[string]bool, len(f.Nodes))
	var queue []string
	for _, n := range f.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		ranks = append(ranks, queue)
		var next []string
		for _, u := range queue {
			placed[u] = true
			for _, v := range adj[u] {
				inDegree[v]--
				if inDegree[v] == 0 {
					next = append(next, v)
				}
			}
		}
		queue = next
	}
	var cyclic []string
	for _, n := range f.Nodes {
		if !placed[n.ID] {
			cyclic = append(cyclic, n.ID)
		}
	}
	if len(cyclic) > 0 {
		ranks = append(ranks, cyclic)
	}

	maxRank := 0
	for _, r := range ranks {
		if len(r) > maxRank {
			maxRank = len(r)
		}
	}
	out := FlowLayout{
		Ranks:  ranks,
		Width:  float64(maxRank*NodeWidth + (maxRank-1)*HorizontalSpacing),
		Height: float64(len(ranks)*NodeHeight + (len(ranks)-1)*VerticalSpacing),
	}

	pos := make(map[string]PlacedNode, len(f.Nodes))
	for ri, rank := range ranks {
		y := float64(ri * (NodeHeight + VerticalSpacing))
		rankWidth := float64(len(rank)*NodeWidth + (len(rank)-1)*HorizontalSpacing)
		startX := (out.Width - rankWidth) / 2
		for ni, id := range rank {
			p := PlacedNode{Node: byID[id], X: startX + float64(ni*(NodeWidth+HorizontalSpacing)), Y: y, Rank: ri}
			pos[id] = p
			out.Nodes = append(out.Nodes, p)
		}
	}

	for _, e := range f.Edges {
		from, ok := pos[e.From]
		if !ok {
			continue
		}
		to, ok := pos[e.To]
		if !ok {
			continue
		}
		out.Edges = append(out.Edges, PlacedEdge{
			Edge:   e,
			X1:     from.X + NodeWidth/2,
			Y1:     from.Y + NodeHeight,
			X2:     to.X + NodeWidth/2,
			Y2:     to.Y,
			LabelX: (from.X+to.X+NodeWidth)/2 + 5,
			LabelY: (from.Y + to.Y + NodeHeight) / 2,
		})
	}
	return out
}
