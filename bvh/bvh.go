// Package bvh builds and traverses bounding-volume hierarchies over
// triangles (per mesh) and over mesh bounding boxes (the top-level tree).
//
// Construction uses the surface-area heuristic with bucketed candidate
// splits. Traversal is stackless (Hapala et al.), carrying just enough
// state in TraversalState to suspend on one worker and resume on another
// without re-visiting already-cleared subtrees.
package bvh

import "github.com/corefan/flexrender/types"

// NumBuckets is the number of SAH buckets used when scoring candidate
// splits along the chosen axis.
const NumBuckets = 12

// BoundedVolume is implemented by anything the builder can partition:
// triangles for a per-mesh BVH, or mesh bounding boxes for the top-level
// BVH.
type BoundedVolume interface {
	BBox() types.BoundingBox
	Center() types.Vec3
}

// LinearNode is one entry of the flattened, depth-first BVH array. The left
// child of an interior node is always at index+1; the right child index is
// stored explicitly. Leaves have NPrims > 0 and reference a contiguous run
// of the BVH's PrimIndices permutation.
type LinearNode struct {
	Bounds    types.BoundingBox
	Parent    uint32
	Right     uint32
	Axis      types.Axis
	FirstPrim uint32
	NPrims    uint32
}

// IsLeaf reports whether the node is a leaf.
func (n *LinearNode) IsLeaf() bool {
	return n.NPrims > 0
}

// BVH is a flattened, stackless-traversable bounding volume hierarchy.
type BVH struct {
	Nodes []LinearNode

	// PrimIndices is a permutation of the original primitive slice;
	// leaf ranges [FirstPrim, FirstPrim+NPrims) index into it, not
	// directly into the caller's primitive slice.
	PrimIndices []uint32
}

// Extents returns the bounding box of the root node, i.e. the volume
// enclosing every primitive in the tree.
func (b *BVH) Extents() types.BoundingBox {
	if len(b.Nodes) == 0 {
		return types.EmptyBoundingBox()
	}
	return b.Nodes[0].Bounds
}

// rootSentinelParent is the value stored in the root node's Parent field;
// traversal terminates when it would step "up" from the root to this value.
const rootSentinelParent = 0

type builder struct {
	prims   []BoundedVolume
	indices []uint32
	nodes   []LinearNode
}

// Build partitions prims into a BVH. Zero primitives produce a single root
// node with no primitives (NPrims 0, so not a leaf) whose empty bounds
// every ray misses; one primitive produces a single leaf wrapping its
// bound.
func Build(prims []BoundedVolume) *BVH {
	if len(prims) == 0 {
		return &BVH{
			Nodes:       []LinearNode{{Bounds: types.EmptyBoundingBox(), Parent: rootSentinelParent}},
			PrimIndices: nil,
		}
	}

	indices := make([]uint32, len(prims))
	for i := range indices {
		indices[i] = uint32(i)
	}

	b := &builder{prims: prims, indices: indices}
	b.build(0, len(indices), rootSentinelParent)

	return &BVH{Nodes: b.nodes, PrimIndices: b.indices}
}

func (b *builder) computeBounds(start, end int) (bounds, centroidBounds types.BoundingBox) {
	bounds = types.EmptyBoundingBox()
	centroidBounds = types.EmptyBoundingBox()
	for i := start; i < end; i++ {
		prim := b.prims[b.indices[i]]
		bounds = bounds.Union(prim.BBox())
		centroidBounds = centroidBounds.ExtendPoint(prim.Center())
	}
	return bounds, centroidBounds
}

func (b *builder) makeLeaf(nodeIndex int, parent uint32, bounds types.BoundingBox, start, end int) {
	b.nodes[nodeIndex] = LinearNode{
		Bounds:    bounds,
		Parent:    parent,
		FirstPrim: uint32(start),
		NPrims:    uint32(end - start),
	}
}

// build partitions indices[start:end], appends the resulting subtree to
// b.nodes depth-first and returns the new subtree's root index.
func (b *builder) build(start, end int, parent uint32) uint32 {
	nodeIndex := uint32(len(b.nodes))
	b.nodes = append(b.nodes, LinearNode{})

	bounds, centroidBounds := b.computeBounds(start, end)
	n := end - start

	if n <= 1 || centroidBounds.Degenerate() {
		b.makeLeaf(int(nodeIndex), parent, bounds, start, end)
		return nodeIndex
	}

	axis := centroidBounds.LongestAxis()
	axisMin := centroidBounds.Min[axis]
	axisMax := centroidBounds.Max[axis]
	if axisMax-axisMin < 1e-8 {
		b.makeLeaf(int(nodeIndex), parent, bounds, start, end)
		return nodeIndex
	}

	type bucket struct {
		count  int
		bounds types.BoundingBox
	}
	var buckets [NumBuckets]bucket
	for i := range buckets {
		buckets[i].bounds = types.EmptyBoundingBox()
	}

	bucketOf := func(c types.Vec3) int {
		bi := int(NumBuckets * (c[axis] - axisMin) / (axisMax - axisMin))
		if bi < 0 {
			bi = 0
		}
		if bi >= NumBuckets {
			bi = NumBuckets - 1
		}
		return bi
	}

	for i := start; i < end; i++ {
		prim := b.prims[b.indices[i]]
		bi := bucketOf(prim.Center())
		buckets[bi].count++
		buckets[bi].bounds = buckets[bi].bounds.Union(prim.BBox())
	}

	// Prefix (left) and suffix (right) accumulations across the 11
	// candidate splits between adjacent buckets.
	var leftBounds [NumBuckets]types.BoundingBox
	var leftCount [NumBuckets]int
	acc := types.EmptyBoundingBox()
	accCount := 0
	for i := 0; i < NumBuckets; i++ {
		acc = acc.Union(buckets[i].bounds)
		accCount += buckets[i].count
		leftBounds[i] = acc
		leftCount[i] = accCount
	}

	var rightBounds [NumBuckets]types.BoundingBox
	var rightCount [NumBuckets]int
	acc = types.EmptyBoundingBox()
	accCount = 0
	for i := NumBuckets - 1; i >= 0; i-- {
		acc = acc.Union(buckets[i].bounds)
		accCount += buckets[i].count
		rightBounds[i] = acc
		rightCount[i] = accCount
	}

	parentSA := bounds.SurfaceArea()
	bestCost := float32(n) // leaf cost
	bestSplit := -1
	for i := 0; i < NumBuckets-1; i++ {
		lc, rc := leftCount[i], rightCount[i+1]
		if lc == 0 || rc == 0 {
			continue
		}
		cost := 1 + (leftBounds[i].SurfaceArea()*float32(lc)+rightBounds[i+1].SurfaceArea()*float32(rc))/parentSA
		if bestSplit == -1 || cost < bestCost {
			bestCost = cost
			bestSplit = i
		}
	}

	if bestSplit == -1 || bestCost >= float32(n) {
		b.makeLeaf(int(nodeIndex), parent, bounds, start, end)
		return nodeIndex
	}

	mid := partition(b.indices[start:end], b.prims, func(p BoundedVolume) bool {
		return bucketOf(p.Center()) <= bestSplit
	})

	if mid == 0 || mid == n {
		// All primitives landed on one side (can happen with
		// coincident centroids); fall back to a leaf rather than
		// recursing forever.
		b.makeLeaf(int(nodeIndex), parent, bounds, start, end)
		return nodeIndex
	}

	b.nodes[nodeIndex] = LinearNode{Bounds: bounds, Parent: parent, Axis: axis}
	b.build(start, start+mid, nodeIndex)
	right := b.build(start+mid, end, nodeIndex)
	b.nodes[nodeIndex].Right = right
	return nodeIndex
}

// partition reorders indices in place so that every index whose primitive
// satisfies keepLeft precedes every index that doesn't, and returns the
// split point.
func partition(indices []uint32, prims []BoundedVolume, keepLeft func(BoundedVolume) bool) int {
	i, j := 0, len(indices)-1
	for i <= j {
		for i <= j && keepLeft(prims[indices[i]]) {
			i++
		}
		for i <= j && !keepLeft(prims[indices[j]]) {
			j--
		}
		if i < j {
			indices[i], indices[j] = indices[j], indices[i]
			i++
			j--
		}
	}
	return i
}
