package cluster

import (
	"math"
	"sort"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

const minDistance = 1e-12

type mstEdge struct {
	a, b int
	w    float64
}

type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// HDBSCAN clusters points given their pairwise distance matrix without a
// preset number of clusters. Points are cores relative to their minSamples
// nearest neighbours (the point itself included); clusters smaller than
// minClusterSize dissolve into noise. The root of the hierarchy is never
// selected, so a batch needs at least two candidate groups to produce any
// cluster. Labels are numbered by the smallest member index; noise is -1.
func HDBSCAN(dist [][]float64, minClusterSize, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples < 1 {
		minSamples = 1
	}
	if n < minClusterSize || n < 2 {
		return labels
	}

	core := coreDistances(dist, minSamples)
	edges := mutualReachabilityMST(dist, core)
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })

	left, right, height, size := singleLinkage(n, edges)
	condensed := condenseTree(n, left, right, height, size, minClusterSize)
	selected := selectClusters(n, condensed)
	return labelPoints(n, condensed, selected)
}

func coreDistances(dist [][]float64, minSamples int) []float64 {
	n := len(dist)
	k := min(minSamples, n) - 1
	core := make([]float64, n)
	row := make([]float64, n)
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k]
	}
	return core
}

// mutualReachabilityMST runs Prim's algorithm over the dense mutual
// reachability graph max(core[a], core[b], d(a, b)).
func mutualReachabilityMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			mr := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if mr < best[j] {
				best[j] = mr
				from[j] = current
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, w: best[next]})
		current = next
	}
	return edges
}

// singleLinkage turns sorted MST edges into a dendrogram. Leaves are
// 0..n-1, merge k creates node n+k; the root is 2n-2.
func singleLinkage(n int, edges []mstEdge) (left, right []int, height []float64, size []int) {
	total := 2*n - 1
	parent := make([]int, total)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	left = make([]int, total)
	right = make([]int, total)
	height = make([]float64, total)
	size = make([]int, total)
	for i := 0; i < n; i++ {
		left[i], right[i], size[i] = -1, -1, 1
	}

	for k, e := range edges {
		node := n + k
		ra, rb := find(e.a), find(e.b)
		left[node], right[node] = ra, rb
		height[node] = e.w
		size[node] = size[ra] + size[rb]
		parent[ra], parent[rb] = node, node
	}
	return left, right, height, size
}

func lambdaOf(d float64) float64 {
	return 1 / math.Max(d, minDistance)
}

// condenseTree walks the dendrogram top-down. A split where both sides
// have at least minClusterSize points creates two child clusters; smaller
// sides fall out as individual points at the split's lambda. Condensed
// cluster IDs start at n (the root) and grow in visit order, so children
// always have larger IDs than their parent.
func condenseTree(n int, left, right []int, height []float64, size []int, minClusterSize int) []condensedEdge {
	root := 2*n - 2
	label := map[int]int{root: n}
	nextLabel := n + 1
	var out []condensedEdge

	var leaves func(node int, acc []int) []int
	leaves = func(node int, acc []int) []int {
		if node < n {
			return append(acc, node)
		}
		acc = leaves(left[node], acc)
		return leaves(right[node], acc)
	}
	fallOut := func(parent, node int, lambda float64) {
		for _, p := range leaves(node, nil) {
			out = append(out, condensedEdge{parent: parent, child: p, lambda: lambda, size: 1})
		}
	}

	queue := []int{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node < n {
			continue
		}
		cluster := label[node]
		lambda := lambdaOf(height[node])
		l, r := left[node], right[node]
		bigL, bigR := size[l] >= minClusterSize, size[r] >= minClusterSize

		switch {
		case bigL && bigR:
			for _, child := range []int{l, r} {
				label[child] = nextLabel
				out = append(out, condensedEdge{parent: cluster, child: nextLabel, lambda: lambda, size: size[child]})
				nextLabel++
				queue = append(queue, child)
			}
		case bigL:
			label[l] = cluster
			fallOut(cluster, r, lambda)
			queue = append(queue, l)
		case bigR:
			label[r] = cluster
			fallOut(cluster, l, lambda)
			queue = append(queue, r)
		default:
			fallOut(cluster, l, lambda)
			fallOut(cluster, r, lambda)
		}
	}
	return out
}

// selectClusters applies excess-of-mass selection over every cluster but the root.
func selectClusters(n int, condensed []condensedEdge) map[int]bool {
	birth := map[int]float64{n: 0}
	children := make(map[int][]int)
	maxID := n
	for _, e := range condensed {
		if e.child >= n {
			birth[e.child] = e.lambda
			children[e.parent] = append(children[e.parent], e.child)
			maxID = max(maxID, e.child)
		}
	}

	stability := make(map[int]float64)
	for _, e := range condensed {
		stability[e.parent] += (e.lambda - birth[e.parent]) * float64(e.size)
	}

	selected := make(map[int]bool)
	var deselect func(c int)
	deselect = func(c int) {
		for _, ch := range children[c] {
			delete(selected, ch)
			deselect(ch)
		}
	}

	for c := maxID; c > n; c-- {
		if _, ok := birth[c]; !ok {
			continue
		}
		if len(children[c]) == 0 {
			selected[c] = true
			continue
		}
		var childStability float64
		for _, ch := range children[c] {
			childStability += stability[ch]
		}
		if childStability > stability[c] {
			stability[c] = childStability
		} else {
			selected[c] = true
			deselect(c)
		}
	}
	return selected
}

func labelPoints(n int, condensed []condensedEdge, selected map[int]bool) []int {
	parentOf := make(map[int]int)
	for _, e := range condensed {
		parentOf[e.child] = e.parent
	}

	clusterOf := make([]int, n)
	for p := 0; p < n; p++ {
		clusterOf[p] = Noise
		c, ok := parentOf[p]
		for ok {
			if selected[c] {
				clusterOf[p] = c
				break
			}
			c, ok = parentOf[c]
		}
	}

	// Renumber by first member so labels are stable across runs.
	renumber := make(map[int]int)
	labels := make([]int, n)
	for p, c := range clusterOf {
		if c == Noise {
			labels[p] = Noise
			continue
		}
		l, ok := renumber[c]
		if !ok {
			l = len(renumber)
			renumber[c] = l
		}
		labels[p] = l
	}
	return labels
}
