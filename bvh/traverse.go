package bvh

import (
	"math"

	"github.com/corefan/flexrender/types"
)

// Direction records how the stackless walk arrived at the current node,
// per Hapala et al.'s "Efficient Stack-less BVH Traversal for Ray Tracing".
type Direction uint8

const (
	FromParent Direction = iota
	FromSibling
	FromChild
)

// TraversalState is a portable snapshot of a stackless BVH walk, sufficient
// to resume traversal on a different worker without re-visiting subtrees
// that were already ruled out.
type TraversalState struct {
	Current uint32
	From    Direction
	BestT   float32
	HitAny  bool

	// lastChild is the node index we just ascended from; only
	// meaningful when From == FromChild, where it disambiguates
	// "returned from the near side" from "returned from the far side".
	lastChild uint32
}

// NewTraversalState returns the state a fresh (non-resumed) traversal
// starts from: the root, arrived at "from its parent".
func NewTraversalState() TraversalState {
	return TraversalState{Current: 0, From: FromParent, BestT: math.MaxFloat32}
}

const shadowEpsilon = 1e-4

// Intersector is invoked once per leaf primitive during traversal. It
// should test the primitive against ray, compare against *bestT, update
// *bestT and return hit=true if it recorded a closer intersection.
// Returning requestSuspend=true packages the walk into a TraversalState and
// returns it to the caller instead of continuing.
type Intersector func(primIndex uint32, ray types.SlimRay, bestT *float32) (hit bool, requestSuspend bool)

// Traverse resumes (or starts, if state is freshly constructed) a stackless
// walk of the BVH, invoking intersect on every primitive in every leaf
// whose bounds the ray hits before BestT. It returns whether any
// intersection was recorded and whether the walk suspended before
// completion (in which case state can be handed to another worker and
// Traverse called again to continue).
func (b *BVH) Traverse(state *TraversalState, ray types.SlimRay, intersect Intersector) (hitAny bool, suspended bool) {
	if len(b.Nodes) == 0 {
		return false, false
	}
	invDir := ray.InvDirection()

	nearChild := func(idx uint32) uint32 {
		node := &b.Nodes[idx]
		if ray.Direction[node.Axis] < 0 {
			return node.Right
		}
		return idx + 1
	}
	farChild := func(idx uint32) uint32 {
		node := &b.Nodes[idx]
		if ray.Direction[node.Axis] < 0 {
			return idx + 1
		}
		return node.Right
	}
	isLeftChild := func(idx, parent uint32) bool {
		return idx == parent+1
	}
	sibling := func(idx uint32) uint32 {
		node := &b.Nodes[idx]
		parentNode := &b.Nodes[node.Parent]
		if isLeftChild(idx, node.Parent) {
			return parentNode.Right
		}
		return node.Parent + 1
	}
	ascend := func(from uint32) (uint32, bool) {
		if from == 0 {
			return 0, false
		}
		return b.Nodes[from].Parent, true
	}

	for {
		node := &b.Nodes[state.Current]

		switch state.From {
		case FromParent, FromSibling:
			_, boxHit := node.Bounds.IntersectRay(ray.Origin, invDir, shadowEpsilon, state.BestT)
			if !boxHit {
				if state.From == FromParent {
					if state.Current == 0 {
						return state.HitAny, false
					}
					state.Current = sibling(state.Current)
					state.From = FromSibling
					continue
				}
				next, ok := ascend(state.Current)
				if !ok {
					return state.HitAny, false
				}
				state.lastChild = state.Current
				state.Current = next
				state.From = FromChild
				continue
			}

			if node.IsLeaf() {
				for i := uint32(0); i < node.NPrims; i++ {
					primIdx := b.PrimIndices[node.FirstPrim+i]
					hit, suspend := intersect(primIdx, ray, &state.BestT)
					if hit {
						state.HitAny = true
					}
					if suspend {
						return state.HitAny, true
					}
				}
				if state.Current == 0 {
					return state.HitAny, false
				}
				if state.From == FromParent {
					state.Current = sibling(state.Current)
					state.From = FromSibling
					continue
				}
				next, _ := ascend(state.Current)
				state.lastChild = state.Current
				state.Current = next
				state.From = FromChild
				continue
			}

			state.Current = nearChild(state.Current)
			state.From = FromParent
			continue

		case FromChild:
			near := nearChild(state.Current)
			if state.lastChild == near {
				state.Current = farChild(state.Current)
				state.From = FromSibling
				continue
			}
			next, ok := ascend(state.Current)
			if !ok {
				return state.HitAny, false
			}
			state.lastChild = state.Current
			state.Current = next
			state.From = FromChild
			continue
		}
	}
}
