package bvh

import (
	"math/rand"
	"testing"

	"github.com/corefan/flexrender/types"
)

type triPrim struct {
	box    types.BoundingBox
	center types.Vec3
}

func (t triPrim) BBox() types.BoundingBox { return t.box }
func (t triPrim) Center() types.Vec3      { return t.center }

func boxFromPoint(p types.Vec3, r float32) types.BoundingBox {
	return types.BoundingBox{
		Min: types.XYZ(p[0]-r, p[1]-r, p[2]-r),
		Max: types.XYZ(p[0]+r, p[1]+r, p[2]+r),
	}
}

func randomPrims(n int, seed int64) []BoundedVolume {
	rng := rand.New(rand.NewSource(seed))
	prims := make([]BoundedVolume, n)
	for i := 0; i < n; i++ {
		c := types.XYZ(rng.Float32()*10-5, rng.Float32()*10-5, rng.Float32()*10-5)
		prims[i] = triPrim{box: boxFromPoint(c, 0.1), center: c}
	}
	return prims
}

func TestBuild_EmptyScene(t *testing.T) {
	b := Build(nil)
	if len(b.Nodes) != 1 {
		t.Fatalf("expected single sentinel node, got %d", len(b.Nodes))
	}
	if !b.Extents().Degenerate() {
		t.Fatalf("expected degenerate extents for empty scene")
	}
}

func TestBuild_SinglePrimitive(t *testing.T) {
	prims := randomPrims(1, 1)
	b := Build(prims)
	if len(b.Nodes) != 1 || !b.Nodes[0].IsLeaf() {
		t.Fatalf("single primitive should build a single leaf root")
	}
	if b.Nodes[0].NPrims != 1 {
		t.Fatalf("expected 1 primitive in leaf, got %d", b.Nodes[0].NPrims)
	}
}

// TestBuild_ChildBoundsWithinParent checks the fundamental BVH invariant:
// every node's bounds enclose both of its children's bounds.
func TestBuild_ChildBoundsWithinParent(t *testing.T) {
	prims := randomPrims(200, 42)
	b := Build(prims)

	contains := func(outer, inner types.BoundingBox) bool {
		for axis := 0; axis < 3; axis++ {
			if inner.Min[axis] < outer.Min[axis]-1e-4 || inner.Max[axis] > outer.Max[axis]+1e-4 {
				return false
			}
		}
		return true
	}

	for i := range b.Nodes {
		node := &b.Nodes[i]
		if node.IsLeaf() {
			continue
		}
		left := &b.Nodes[i+1]
		right := &b.Nodes[node.Right]
		if !contains(node.Bounds, left.Bounds) {
			t.Fatalf("node %d bounds do not contain left child %d bounds", i, i+1)
		}
		if !contains(node.Bounds, right.Bounds) {
			t.Fatalf("node %d bounds do not contain right child %d bounds", i, node.Right)
		}
	}
}

// naiveIntersect brute-force tests every primitive, used as an oracle.
func naiveIntersect(prims []BoundedVolume, boxes []types.BoundingBox, ray types.SlimRay, tMax float32) (bool, uint32) {
	invDir := ray.InvDirection()
	best := tMax
	hitAny := false
	var hitIdx uint32
	for i, box := range boxes {
		if _, ok := box.IntersectRay(ray.Origin, invDir, 1e-4, best); ok {
			hitAny = true
			hitIdx = uint32(i)
			_ = prims
		}
	}
	return hitAny, hitIdx
}

func TestTraverse_AgreesWithNaiveOnBoxHits(t *testing.T) {
	prims := randomPrims(100, 7)
	boxes := make([]types.BoundingBox, len(prims))
	for i, p := range prims {
		boxes[i] = p.BBox()
	}
	b := Build(prims)

	rng := rand.New(rand.NewSource(99))
	for trial := 0; trial < 50; trial++ {
		origin := types.XYZ(rng.Float32()*20-10, rng.Float32()*20-10, rng.Float32()*20-10)
		dir := types.XYZ(rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1).Normalize()
		ray := types.SlimRay{Origin: origin, Direction: dir}

		wantHit, _ := naiveIntersect(prims, boxes, ray, 1e6)

		state := NewTraversalState()
		gotHit, suspended := b.Traverse(&state, ray, func(primIdx uint32, r types.SlimRay, bestT *float32) (bool, bool) {
			if dist, ok := boxes[primIdx].IntersectRay(r.Origin, r.InvDirection(), 1e-4, *bestT); ok {
				*bestT = dist
				return true, false
			}
			return false, false
		})
		if suspended {
			t.Fatalf("traversal suspended without a suspend request")
		}
		if gotHit != wantHit {
			t.Fatalf("trial %d: naive hit=%v bvh hit=%v", trial, wantHit, gotHit)
		}
	}
}

// TestTraverse_SuspendResume checks that a walk suspended after its first
// leaf hit and resumed from the saved TraversalState finds the same overall
// result as one that runs uninterrupted.
func TestTraverse_SuspendResume(t *testing.T) {
	prims := randomPrims(150, 13)
	boxes := make([]types.BoundingBox, len(prims))
	for i, p := range prims {
		boxes[i] = p.BBox()
	}
	b := Build(prims)

	ray := types.SlimRay{Origin: types.XYZ(-20, -20, -20), Direction: types.XYZ(1, 1, 1).Normalize()}

	intersector := func(primIdx uint32, r types.SlimRay, bestT *float32) (bool, bool) {
		if dist, ok := boxes[primIdx].IntersectRay(r.Origin, r.InvDirection(), 1e-4, *bestT); ok {
			*bestT = dist
			return true, false
		}
		return false, false
	}

	full := NewTraversalState()
	fullHit, _ := b.Traverse(&full, ray, intersector)

	suspendAfter := 1
	seen := 0
	resumable := NewTraversalState()
	_, suspended := b.Traverse(&resumable, ray, func(primIdx uint32, r types.SlimRay, bestT *float32) (bool, bool) {
		hit, _ := intersector(primIdx, r, bestT)
		if hit {
			seen++
		}
		return hit, hit && seen >= suspendAfter
	})
	if !suspended {
		t.Fatalf("expected first pass to suspend")
	}

	resumedHit, resumedSuspended := b.Traverse(&resumable, ray, intersector)
	if resumedSuspended {
		t.Fatalf("resumed traversal should run to completion")
	}
	if resumedHit != fullHit {
		t.Fatalf("resumed traversal hit=%v, uninterrupted traversal hit=%v", resumedHit, fullHit)
	}
	if resumable.BestT != full.BestT {
		t.Fatalf("resumed traversal bestT=%v, uninterrupted bestT=%v", resumable.BestT, full.BestT)
	}
}

func TestTriangleIntersect_DegenerateIsMiss(t *testing.T) {
	degenerate := types.Triangle{
		V0: types.XYZ(0, 0, 0),
		V1: types.XYZ(0, 0, 0),
		V2: types.XYZ(0, 0, 0),
	}
	ray := types.SlimRay{Origin: types.XYZ(0, 0, -1), Direction: types.XYZ(0, 0, 1)}
	if _, _, _, ok := degenerate.Intersect(ray, 1e6); ok {
		t.Fatalf("degenerate triangle should never report a hit")
	}
}
