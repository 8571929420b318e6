// Package scene is a minimal external scene source: a Wavefront OBJ
// loader driving the sync_mesh callback contract of spec §6. Full scene
// description parsing (a material-expression grammar, procedural texture
// scripts) stays out of scope per spec.md's Non-goals; this package
// exists only so `flexrender render` has at least one working scene
// source, grounded on the teacher's asset/scene/reader/wavefront.go
// (vertex/face parsing, usemtl grouping), stripped of its MTL material
// mapping, material-expression-language and asset-resource machinery;
// a usemtl line contributes only its material name.
package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/corefan/flexrender/log"
	"github.com/corefan/flexrender/types"
)

var logger = log.New("scene")

// RawMesh is one usemtl-delimited group of triangles read from an OBJ
// file, ready to be handed to a SyncMesh callback.
type RawMesh struct {
	Name         string
	MaterialName string
	Triangles    []types.Triangle
}

// SyncMesh is the callback contract of spec §6: on nonnull input, assign
// the next mesh id, store the mesh, prepare its material's shader script
// and any procedural textures (idempotently), and return the assigned id.
// A nil mesh returns id 0.
type SyncMesh func(*RawMesh) uint32

type objVertex struct {
	pos    types.Vec3
	normal types.Vec3
	uv     types.Vec2
}

// LoadOBJ streams a Wavefront OBJ file, grouping faces by their active
// usemtl material into RawMesh batches, invoking sync once per group as
// soon as a new usemtl line (or EOF) closes the previous group out.
func LoadOBJ(r io.Reader, sync SyncMesh) error {
	var positions []types.Vec3
	var normals []types.Vec3
	var uvs []types.Vec2

	curMaterial := "default"
	var curTriangles []types.Triangle
	groupIndex := 0

	flush := func() error {
		if len(curTriangles) == 0 {
			return nil
		}
		mesh := &RawMesh{
			Name:         fmt.Sprintf("group-%d", groupIndex),
			MaterialName: curMaterial,
			Triangles:    curTriangles,
		}
		if id := sync(mesh); id == 0 {
			return fmt.Errorf("scene: sync_mesh rejected group %q", mesh.Name)
		}
		groupIndex++
		curTriangles = nil
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return fmt.Errorf("scene: line %d: %w", lineNo, err)
			}
			positions = append(positions, p)
		case "vn":
			n, err := parseVec3(fields[1:])
			if err != nil {
				return fmt.Errorf("scene: line %d: %w", lineNo, err)
			}
			normals = append(normals, n)
		case "vt":
			uv, err := parseVec2(fields[1:])
			if err != nil {
				return fmt.Errorf("scene: line %d: %w", lineNo, err)
			}
			uvs = append(uvs, uv)
		case "usemtl":
			if err := flush(); err != nil {
				return err
			}
			curMaterial = fields[1]
		case "f":
			tris, err := parseFace(fields[1:], positions, normals, uvs)
			if err != nil {
				return fmt.Errorf("scene: line %d: %w", lineNo, err)
			}
			curTriangles = append(curTriangles, tris...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scene: reading obj: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}
	logger.Infof("loaded %d mesh groups from wavefront obj", groupIndex)
	return nil
}

func parseVec3(fields []string) (types.Vec3, error) {
	if len(fields) < 3 {
		return types.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	x, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return types.Vec3{}, err
	}
	y, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return types.Vec3{}, err
	}
	z, err := strconv.ParseFloat(fields[2], 32)
	if err != nil {
		return types.Vec3{}, err
	}
	return types.XYZ(float32(x), float32(y), float32(z)), nil
}

func parseVec2(fields []string) (types.Vec2, error) {
	if len(fields) < 2 {
		return types.Vec2{}, fmt.Errorf("expected 2 components, got %d", len(fields))
	}
	u, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return types.Vec2{}, err
	}
	v, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return types.Vec2{}, err
	}
	return types.XY(float32(u), float32(v)), nil
}

// faceVertexIndex resolves a "v/vt/vn" OBJ face token (1-based, negative
// indices relative to the current count) into zero-based indices.
func faceVertexIndex(token string, nPos, nUV, nNorm int) (pos, uv, norm int, err error) {
	parts := strings.Split(token, "/")
	resolve := func(s string, count int) (int, error) {
		if s == "" {
			return -1, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return -1, err
		}
		if i < 0 {
			return count + i, nil
		}
		return i - 1, nil
	}
	pos, err = resolve(parts[0], nPos)
	if err != nil {
		return
	}
	if len(parts) > 1 {
		uv, err = resolve(parts[1], nUV)
		if err != nil {
			return
		}
	} else {
		uv = -1
	}
	if len(parts) > 2 {
		norm, err = resolve(parts[2], nNorm)
		if err != nil {
			return
		}
	} else {
		norm = -1
	}
	return
}

// parseFace triangulates an OBJ face (a fan from vertex 0) and resolves
// its vertex/uv/normal indices, synthesizing a flat normal when the file
// doesn't supply one.
func parseFace(fields []string, positions, normals []types.Vec3, uvs []types.Vec2) ([]types.Triangle, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("face needs >= 3 vertices, got %d", len(fields))
	}

	type vtx struct {
		pos types.Vec3
		n   types.Vec3
		uv  types.Vec2
	}
	verts := make([]vtx, len(fields))
	for i, f := range fields {
		pi, ui, ni, err := faceVertexIndex(f, len(positions), len(uvs), len(normals))
		if err != nil {
			return nil, err
		}
		if pi < 0 || pi >= len(positions) {
			return nil, fmt.Errorf("face vertex index out of range: %s", f)
		}
		v := vtx{pos: positions[pi]}
		if ui >= 0 && ui < len(uvs) {
			v.uv = uvs[ui]
		}
		if ni >= 0 && ni < len(normals) {
			v.n = normals[ni]
		}
		verts[i] = v
	}

	haveNormals := verts[0].n != types.Vec3{}

	var tris []types.Triangle
	for i := 1; i < len(verts)-1; i++ {
		a, b, c := verts[0], verts[i], verts[i+1]
		if !haveNormals {
			n := b.pos.Sub(a.pos).Cross(c.pos.Sub(a.pos)).Normalize()
			a.n, b.n, c.n = n, n, n
		}
		tris = append(tris, types.Triangle{
			V0: a.pos, V1: b.pos, V2: c.pos,
			N0: a.n, N1: b.n, N2: c.n,
			UV0: a.uv, UV1: b.uv, UV2: c.uv,
		})
	}
	return tris, nil
}
