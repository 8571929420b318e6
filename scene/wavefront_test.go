package scene

import (
	"strings"
	"testing"

	"github.com/corefan/flexrender/types"
)

const quadOBJ = `
# a unit quad, two triangles, explicit normals
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
usemtl glass
f 1//1 2//1 3//1
f 1//1 3//1 4//1
`

func TestLoadOBJ_SingleGroup(t *testing.T) {
	var got []*RawMesh
	sync := func(m *RawMesh) uint32 {
		got = append(got, m)
		return uint32(len(got))
	}
	if err := LoadOBJ(strings.NewReader(quadOBJ), sync); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("groups = %d, want 1", len(got))
	}
	if got[0].MaterialName != "glass" {
		t.Fatalf("MaterialName = %q, want glass", got[0].MaterialName)
	}
	if len(got[0].Triangles) != 2 {
		t.Fatalf("triangles = %d, want 2 (fan-triangulated quad)", len(got[0].Triangles))
	}
}

func TestLoadOBJ_MultipleUsemtlGroups(t *testing.T) {
	const obj = `
v 0 0 0
v 1 0 0
v 0 1 0
usemtl red
f 1 2 3
usemtl blue
f 1 2 3
`
	var groups []*RawMesh
	sync := func(m *RawMesh) uint32 {
		groups = append(groups, m)
		return uint32(len(groups))
	}
	if err := LoadOBJ(strings.NewReader(obj), sync); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].MaterialName != "red" || groups[1].MaterialName != "blue" {
		t.Fatalf("materials = %q, %q, want red, blue", groups[0].MaterialName, groups[1].MaterialName)
	}
}

func TestLoadOBJ_SyncMeshRejection(t *testing.T) {
	const obj = "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl m\nf 1 2 3\n"
	err := LoadOBJ(strings.NewReader(obj), func(*RawMesh) uint32 { return 0 })
	if err == nil {
		t.Fatal("expected an error when sync_mesh rejects a group")
	}
}

func TestLoadOBJ_SynthesizesFlatNormalWhenAbsent(t *testing.T) {
	const obj = "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl m\nf 1 2 3\n"
	var got *RawMesh
	err := LoadOBJ(strings.NewReader(obj), func(m *RawMesh) uint32 {
		got = m
		return 1
	})
	if err != nil {
		t.Fatal(err)
	}
	n := got.Triangles[0].N0
	if n == (types.Vec3{}) {
		t.Fatal("a face with no vn lines should get a synthesized flat normal")
	}
	if want := types.XYZ(0, 0, 1); n.Sub(want).Len() > 1e-4 {
		t.Fatalf("synthesized normal = %v, want %v (CCW winding faces +Z)", n, want)
	}
}

func TestFaceVertexIndex_NegativeRelative(t *testing.T) {
	pos, uv, norm, err := faceVertexIndex("-1/-2/-1", 5, 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 4 {
		t.Fatalf("pos = %d, want 4 (last of 5 positions)", pos)
	}
	if uv != 1 {
		t.Fatalf("uv = %d, want 1 (second-to-last of 3 uvs)", uv)
	}
	if norm != 4 {
		t.Fatalf("norm = %d, want 4 (last of 5 normals)", norm)
	}
}

func TestFaceVertexIndex_PositionOnly(t *testing.T) {
	pos, uv, norm, err := faceVertexIndex("3", 5, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 2 {
		t.Fatalf("pos = %d, want 2 (1-based -> 0-based)", pos)
	}
	if uv != -1 || norm != -1 {
		t.Fatalf("uv,norm = %d,%d, want -1,-1 when absent", uv, norm)
	}
}
