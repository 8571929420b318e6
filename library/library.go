// Package library is the process-wide, id-indexed resource table: one
// growable vector per resource kind (config, camera, image, shader,
// texture, material, mesh), matching spec §3/§4.A exactly. Slot 0 of every
// vector is reserved so that id 0 always means "none". The Library is
// mutated only while the scene loads; render workers only ever read it, so
// nothing here takes a lock, mirroring the teacher's asset package (which
// never guards its resource vectors either, on the same construction/
// render-phase-separation assumption).
package library

import (
	"github.com/corefan/flexrender/types"
	"github.com/corefan/flexrender/work"
)

// Config is the render output configuration: dimensions, buffer names,
// antialiasing factor and output file name. Consumed by engine.New and
// carried in the library purely so it is available to any component that
// needs to ask "what buffers exist" after load.
type Config struct {
	Width, Height uint32
	Buffers       []string
	AAFactor      uint32
	MaxJobs       int
	MaxIntervals  int
	OutputName    string
}

// CameraDef is the raw camera parameters read from the scene file, before
// camera.New builds a runtime Camera (with cursor state) from them.
type CameraDef struct {
	Eye, Look, Up types.Vec3
	FovDegrees    float32
	Rotation      float32
}

// ImageDef records the shape of a declared render target: dimensions and
// buffer names. The actual pixel storage lives in imagebuf.Image, built
// once by engine.New from the Config's dimensions and buffer names.
type ImageDef struct {
	Width, Height uint32
	Buffers       []string
}

// Texture is a prepared, sampleable image resource. Pix/Width/Height are
// populated by imageio.LoadTexture; Prepared is set once the shader
// package has finished any one-time setup (e.g. building a Sampler), per
// the "prepare procedural texture scripts once" contract of §4.D step 3.
type Texture struct {
	Width, Height uint32
	Float32       bool
	Pix           []byte
	Prepared      bool

	// Sampler is an opaque handle the shader package stashes here after
	// preparing the texture, so PrepareTexture stays idempotent without
	// the library needing to know about shader.Sampler's concrete type.
	Sampler interface{}
}

// Material is a small tree of BxDF leaves blended by mix nodes, mirroring
// the teacher's MaterialNode "union of node kinds" shape but expressed as
// a plain Go tree instead of a GPU-upload-friendly flat array, since this
// repository never uploads materials to a GPU kernel.
type Material struct {
	Name     string
	Root     *MaterialNode
	Prepared bool
}

// MaterialNodeKind distinguishes a blend node from a BxDF leaf.
type MaterialNodeKind uint8

const (
	NodeMix MaterialNodeKind = iota
	NodeDiffuse
	NodeEmissive
	NodeConductor
	NodeDielectric
)

// MaterialNode is one node of a Material's tree. For NodeMix, Left/Right
// are blended by Weight; for BxDF leaves, Reflectance/Radiance/Roughness
// hold the leaf's parameters and TextureID optionally overrides
// Reflectance with a sampled texture (0 = no texture).
type MaterialNode struct {
	Kind MaterialNodeKind

	Left, Right *MaterialNode
	Weight      float32

	Reflectance types.Vec3
	Radiance    types.Vec3
	Roughness   float32
	IOR         float32
	TextureID   uint32
}

// Mesh is a triangle mesh instance: its own triangle list (already
// transformed to world space by the scene loader) plus the material it is
// bound to and the inverse-transpose transform used to correct normals per
// §4.D's ProcessIntersect.
type Mesh struct {
	Name         string
	Triangles    []types.Triangle
	MaterialID   uint32
	InvTranspose types.Mat4
}

// Library holds every id-indexed resource vector. Create one with New: the
// zero value has no reserved slot 0 and no name indexes. StoreX calls grow
// each vector with nil holes as needed.
type Library struct {
	configs   []*Config
	cameras   []*CameraDef
	images    []*ImageDef
	shaders   []work.Shader
	textures  []*Texture
	materials []*Material
	meshes    []*Mesh

	materialByName map[string]uint32
	bufferByName   map[string]uint32
}

// New returns an empty Library with every vector's reserved slot 0
// already in place.
func New() *Library {
	return &Library{
		configs:        make([]*Config, 1),
		cameras:        make([]*CameraDef, 1),
		images:         make([]*ImageDef, 1),
		shaders:        make([]work.Shader, 1),
		textures:       make([]*Texture, 1),
		materials:      make([]*Material, 1),
		meshes:         make([]*Mesh, 1),
		materialByName: make(map[string]uint32),
		bufferByName:   make(map[string]uint32),
	}
}

func grow[T any](vec []T, id uint32) []T {
	for uint32(len(vec)) <= id {
		vec = append(vec, *new(T))
	}
	return vec
}

// NextConfigID returns the next unused config id.
func (l *Library) NextConfigID() uint32 { return uint32(len(l.configs)) }

// StoreConfig writes cfg into slot id, growing the vector as needed.
func (l *Library) StoreConfig(id uint32, cfg *Config) {
	l.configs = grow(l.configs, id)
	l.configs[id] = cfg
}

// Config returns the config stored at id, or nil on a miss or id 0.
func (l *Library) Config(id uint32) *Config {
	if id == 0 || int(id) >= len(l.configs) {
		return nil
	}
	return l.configs[id]
}

// NextCameraID returns the next unused camera definition id.
func (l *Library) NextCameraID() uint32 { return uint32(len(l.cameras)) }

// StoreCamera writes def into slot id.
func (l *Library) StoreCamera(id uint32, def *CameraDef) {
	l.cameras = grow(l.cameras, id)
	l.cameras[id] = def
}

// Camera returns the camera definition stored at id, or nil on a miss.
func (l *Library) Camera(id uint32) *CameraDef {
	if id == 0 || int(id) >= len(l.cameras) {
		return nil
	}
	return l.cameras[id]
}

// NextImageID returns the next unused image-definition id.
func (l *Library) NextImageID() uint32 { return uint32(len(l.images)) }

// StoreImage writes def into slot id.
func (l *Library) StoreImage(id uint32, def *ImageDef) {
	l.images = grow(l.images, id)
	l.images[id] = def
}

// Image returns the image definition stored at id, or nil on a miss.
func (l *Library) Image(id uint32) *ImageDef {
	if id == 0 || int(id) >= len(l.images) {
		return nil
	}
	return l.images[id]
}

// NextShaderID returns the next unused shader id.
func (l *Library) NextShaderID() uint32 { return uint32(len(l.shaders)) }

// StoreShader writes s into slot id.
func (l *Library) StoreShader(id uint32, s work.Shader) {
	l.shaders = grow(l.shaders, id)
	l.shaders[id] = s
}

// Shader returns the shader stored at id, or nil on a miss.
func (l *Library) Shader(id uint32) work.Shader {
	if id == 0 || int(id) >= len(l.shaders) {
		return nil
	}
	return l.shaders[id]
}

// NextTextureID returns the next unused texture id.
func (l *Library) NextTextureID() uint32 { return uint32(len(l.textures)) }

// StoreTexture writes tex into slot id.
func (l *Library) StoreTexture(id uint32, tex *Texture) {
	l.textures = grow(l.textures, id)
	l.textures[id] = tex
}

// Texture returns the texture stored at id, or nil on a miss.
func (l *Library) Texture(id uint32) *Texture {
	if id == 0 || int(id) >= len(l.textures) {
		return nil
	}
	return l.textures[id]
}

// PrepareTexture marks the texture at id as prepared and returns whether
// it was already prepared before this call, so callers can run their
// one-time setup exactly once per §4.D step 3.
func (l *Library) PrepareTexture(id uint32) (alreadyPrepared bool) {
	tex := l.Texture(id)
	if tex == nil {
		return false
	}
	alreadyPrepared = tex.Prepared
	tex.Prepared = true
	return alreadyPrepared
}

// NextMaterialID returns the next unused material id.
func (l *Library) NextMaterialID() uint32 { return uint32(len(l.materials)) }

// StoreMaterial writes mat into slot id and indexes it by name if named.
func (l *Library) StoreMaterial(id uint32, mat *Material) {
	l.materials = grow(l.materials, id)
	l.materials[id] = mat
	if mat != nil && mat.Name != "" {
		l.materialByName[mat.Name] = id
	}
}

// Material returns the material stored at id, or nil on a miss.
func (l *Library) Material(id uint32) *Material {
	if id == 0 || int(id) >= len(l.materials) {
		return nil
	}
	return l.materials[id]
}

// MaterialByName returns the id of the named material, or 0 on a miss.
func (l *Library) MaterialByName(name string) uint32 {
	return l.materialByName[name]
}

// PrepareMaterial marks the material at id as prepared and returns
// whether it was already prepared, mirroring PrepareTexture.
func (l *Library) PrepareMaterial(id uint32) (alreadyPrepared bool) {
	mat := l.Material(id)
	if mat == nil {
		return false
	}
	alreadyPrepared = mat.Prepared
	mat.Prepared = true
	return alreadyPrepared
}

// NextMeshID returns the next unused mesh id.
func (l *Library) NextMeshID() uint32 { return uint32(len(l.meshes)) }

// StoreMesh writes m into slot id.
func (l *Library) StoreMesh(id uint32, m *Mesh) {
	l.meshes = grow(l.meshes, id)
	l.meshes[id] = m
}

// Mesh returns the mesh stored at id, or nil on a miss.
func (l *Library) Mesh(id uint32) *Mesh {
	if id == 0 || int(id) >= len(l.meshes) {
		return nil
	}
	return l.meshes[id]
}

// EachMesh calls fn for every non-nil mesh, starting at id 1.
func (l *Library) EachMesh(fn func(id uint32, m *Mesh)) {
	for id := 1; id < len(l.meshes); id++ {
		if l.meshes[id] != nil {
			fn(uint32(id), l.meshes[id])
		}
	}
}

// RegisterBufferName indexes a declared buffer name so BufferByName can
// resolve it; used by the worker build's shader-facing buffer lookups.
func (l *Library) RegisterBufferName(name string, index uint32) {
	l.bufferByName[name] = index
}

// BufferByName returns the index registered for name, or 0 on a miss.
func (l *Library) BufferByName(name string) uint32 {
	return l.bufferByName[name]
}
