package shader

import (
	"math/rand"
	"testing"

	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
	"github.com/corefan/flexrender/work"
)

func testRNG() *rand.Rand { return rand.New(rand.NewSource(1)) }

func TestEvalNode_Emissive(t *testing.T) {
	node := &library.MaterialNode{Kind: library.NodeEmissive, Radiance: types.XYZ(1, 2, 3)}
	radiance, emissiveOnly := evalNode(library.New(), node, types.XYZ(0, 1, 0), types.Vec2{})
	if !emissiveOnly {
		t.Fatal("a lone emissive leaf should report emissiveOnly = true")
	}
	if radiance != types.XYZ(1, 2, 3) {
		t.Fatalf("radiance = %v, want (1,2,3)", radiance)
	}
}

func TestEvalNode_DiffuseScalesByNdotL(t *testing.T) {
	node := &library.MaterialNode{Kind: library.NodeDiffuse, Reflectance: types.XYZ(1, 1, 1)}
	up := evalNodeRadiance(node, types.XYZ(0, 1, 0))
	grazing := evalNodeRadiance(node, types.XYZ(1, 0, 0))
	if up[1] <= grazing[1] {
		t.Fatalf("a normal facing up (0,1,0) should reflect more than a grazing one: up=%v grazing=%v", up, grazing)
	}
}

func evalNodeRadiance(node *library.MaterialNode, normal types.Vec3) types.Vec3 {
	radiance, _ := evalNode(library.New(), node, normal, types.Vec2{})
	return radiance
}

func TestEvalNode_MixBlendsByWeight(t *testing.T) {
	node := &library.MaterialNode{
		Kind:   library.NodeMix,
		Weight: 0.25,
		Left:   &library.MaterialNode{Kind: library.NodeEmissive, Radiance: types.XYZ(1, 0, 0)},
		Right:  &library.MaterialNode{Kind: library.NodeEmissive, Radiance: types.XYZ(0, 1, 0)},
	}
	radiance, emissiveOnly := evalNode(library.New(), node, types.XYZ(0, 1, 0), types.Vec2{})
	if !emissiveOnly {
		t.Fatal("mixing two emissive leaves should still report emissiveOnly = true")
	}
	if radiance[0] != 0.25 || radiance[1] != 0.75 {
		t.Fatalf("blended radiance = %v, want (0.25, 0.75, 0)", radiance)
	}
}

func TestEvalNode_MixNotEmissiveIfEitherSideIsnt(t *testing.T) {
	node := &library.MaterialNode{
		Kind:   library.NodeMix,
		Weight: 0.5,
		Left:   &library.MaterialNode{Kind: library.NodeEmissive, Radiance: types.XYZ(1, 0, 0)},
		Right:  &library.MaterialNode{Kind: library.NodeDiffuse, Reflectance: types.XYZ(0, 1, 0)},
	}
	_, emissiveOnly := evalNode(library.New(), node, types.XYZ(0, 1, 0), types.Vec2{})
	if emissiveOnly {
		t.Fatal("mixing an emissive leaf with a diffuse leaf should not report emissiveOnly")
	}
}

func TestIndirect_EmissiveMaterialDoesNotForwardLightRay(t *testing.T) {
	lib := library.New()
	matID := lib.NextMaterialID()
	lib.StoreMaterial(matID, &library.Material{
		Root: &library.MaterialNode{Kind: library.NodeEmissive, Radiance: types.XYZ(1, 1, 1)},
	})
	s := NewBxdfShader(lib, matID, "color", testRNG)

	ray := work.NewPrimaryRay(0, 0, types.SlimRay{}, 1)
	ray.Hit.Geom.Normal = types.XYZ(0, 1, 0)
	results := work.NewWorkResults()

	s.Indirect(ray, types.Vec3{}, results)

	if len(results.Forwards) != 0 {
		t.Fatal("a purely emissive surface should not spawn a LIGHT ray")
	}
	if len(results.BufferOps) != 1 {
		t.Fatalf("BufferOps = %v, want one accumulate", results.BufferOps)
	}
}

func TestIndirect_DiffuseMaterialForwardsLightRay(t *testing.T) {
	lib := library.New()
	matID := lib.NextMaterialID()
	lib.StoreMaterial(matID, &library.Material{
		Root: &library.MaterialNode{Kind: library.NodeDiffuse, Reflectance: types.XYZ(0.5, 0.5, 0.5)},
	})
	s := NewBxdfShader(lib, matID, "color", testRNG)

	ray := work.NewPrimaryRay(0, 0, types.SlimRay{}, 1)
	ray.Hit.Geom.Normal = types.XYZ(0, 1, 0)
	results := work.NewWorkResults()

	s.Indirect(ray, types.XYZ(1, 2, 3), results)

	if len(results.Forwards) != 1 {
		t.Fatalf("Forwards = %d, want 1", len(results.Forwards))
	}
	fwd := results.Forwards[0].Ray
	if fwd.Kind != work.Light {
		t.Fatalf("forwarded ray Kind = %v, want Light", fwd.Kind)
	}
	if fwd.Ray.Origin != types.XYZ(1, 2, 3) {
		t.Fatalf("forwarded ray origin = %v, want the hit point", fwd.Ray.Origin)
	}
	if results.Counters.LightsProduced != 1 {
		t.Fatalf("LightsProduced = %d, want 1", results.Counters.LightsProduced)
	}
}

func TestIndirect_MissingMaterialCountsKilled(t *testing.T) {
	lib := library.New()
	s := NewBxdfShader(lib, 0, "color", testRNG)
	ray := work.NewPrimaryRay(0, 0, types.SlimRay{}, 1)
	results := work.NewWorkResults()

	s.Indirect(ray, types.Vec3{}, results)

	if results.Counters.IlluminatesKilled != 1 {
		t.Fatalf("IlluminatesKilled = %d, want 1", results.Counters.IlluminatesKilled)
	}
	if len(results.BufferOps) != 0 {
		t.Fatal("a missing material should not write any buffer op")
	}
}
