// Package engine is the scheduling core of spec §4.D: it owns the
// Library, the render target, the BVHs, the camera and the worker pool,
// and drives the dispatcher event loop (timer ticks, worker-completion
// callbacks, its own re-arm calls) that the rest of this repository's
// components plug into.
package engine

import (
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/corefan/flexrender/bvh"
	"github.com/corefan/flexrender/camera"
	"github.com/corefan/flexrender/imagebuf"
	"github.com/corefan/flexrender/imageio"
	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/log"
	"github.com/corefan/flexrender/scene"
	"github.com/corefan/flexrender/shader"
	"github.com/corefan/flexrender/types"
	"github.com/corefan/flexrender/work"

	statspkg "github.com/corefan/flexrender/stats"
)

var logger = log.New("engine")

// Sentinel configuration/lifecycle errors, matching the teacher's
// renderer/errors.go one-sentinel-per-failure-mode style rather than a
// generic error-wrapping framework.
var (
	ErrNoConfig      = errors.New("engine: no config loaded")
	ErrAlreadyBuilt  = errors.New("engine: BVHs already built")
	ErrNotBuilt      = errors.New("engine: Build must run before Run")
	ErrNoOutputName  = errors.New("engine: config has no output name")
)

const primaryBuffer = "color"

// Engine is the top-level object spec §9 calls for in place of module-
// scope globals: everything the render needs lives here, created once in
// New and consumed by Run.
type Engine struct {
	cfg *library.Config
	lib *library.Library
	img *imagebuf.Image
	cam *camera.Camera

	topBVH  *bvh.BVH
	meshBVH map[uint32]*bvh.BVH

	pool      *workerPool
	statsTmr  *statspkg.Timer
	counters  work.Counters
	activeJobs int
	maxJobs    int

	loadStart, buildStart, renderStart time.Time
	loadDur, buildDur, renderDur       time.Duration

	stopped chan struct{}
}

// New allocates the Library and Image from cfg. Matches spec §4.D step 1
// (load config, external) followed by step 2's Image allocation.
func New(cfg *library.Config) (*Engine, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	if cfg.OutputName == "" {
		return nil, ErrNoOutputName
	}

	lib := library.New()
	img := imagebuf.NewImage(cfg.Width, cfg.Height, cfg.Buffers)
	for i, name := range cfg.Buffers {
		lib.RegisterBufferName(name, uint32(i+1))
	}

	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}

	return &Engine{
		cfg:     cfg,
		lib:     lib,
		img:     img,
		meshBVH: make(map[uint32]*bvh.BVH),
		maxJobs: maxJobs,
		stopped: make(chan struct{}),
	}, nil
}

// Load runs the scene loader against sceneSource, syncing every mesh
// group through syncMesh (spec §6's sync_mesh callback contract): assign
// an id, store the mesh, and prepare its material's shader (and any
// textures it references) exactly once.
func (e *Engine) Load(sceneSource io.Reader) error {
	e.loadStart = time.Now()
	defer func() { e.loadDur = time.Since(e.loadStart) }()

	err := scene.LoadOBJ(sceneSource, e.syncMesh)
	if err != nil {
		return err
	}
	logger.Infof("scene loaded in %s", time.Since(e.loadStart))
	return nil
}

// syncMesh implements scene.SyncMesh.
func (e *Engine) syncMesh(raw *scene.RawMesh) uint32 {
	if raw == nil {
		return 0
	}

	matID := e.lib.MaterialByName(raw.MaterialName)
	if matID == 0 {
		matID = e.lib.NextMaterialID()
		e.lib.StoreMaterial(matID, &library.Material{
			Name: raw.MaterialName,
			Root: &library.MaterialNode{Kind: library.NodeDiffuse, Reflectance: types.XYZ(0.7, 0.7, 0.7)},
		})
	}
	if !e.lib.PrepareMaterial(matID) {
		e.lib.StoreShader(matID, shader.NewBxdfShader(e.lib, matID, primaryBuffer, e.workerRand))
	}
	var prepareTextures func(n *library.MaterialNode)
	prepareTextures = func(n *library.MaterialNode) {
		if n == nil {
			return
		}
		if n.TextureID != 0 && !e.lib.PrepareTexture(n.TextureID) {
			if tex := e.lib.Texture(n.TextureID); tex != nil {
				tex.Sampler = shader.NewSampler(tex)
			}
		}
		prepareTextures(n.Left)
		prepareTextures(n.Right)
	}
	prepareTextures(e.lib.Material(matID).Root)

	id := e.lib.NextMeshID()
	e.lib.StoreMesh(id, &library.Mesh{
		Name:         raw.Name,
		Triangles:    raw.Triangles,
		MaterialID:   matID,
		InvTranspose: types.Ident4(),
	})
	return id
}

// workerRand is handed to shaders that need an RNG stream; each call
// returns a fresh per-goroutine generator seeded off the process clock, so
// two calls from different goroutines never share mutable state.
func (e *Engine) workerRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Build constructs one BVH per mesh (over its triangles) and the
// top-level BVH over mesh extents, per spec §4.D steps 4-5.
func (e *Engine) Build() error {
	if e.topBVH != nil {
		return ErrAlreadyBuilt
	}
	e.buildStart = time.Now()
	defer func() { e.buildDur = time.Since(e.buildStart) }()

	var extents []bvh.BoundedVolume
	e.lib.EachMesh(func(id uint32, m *library.Mesh) {
		prims := make([]bvh.BoundedVolume, len(m.Triangles))
		for i, t := range m.Triangles {
			prims[i] = triPrim{t}
		}
		meshTree := bvh.Build(prims)
		e.meshBVH[id] = meshTree
		extents = append(extents, meshExtent{id: id, box: meshTree.Extents()})
	})

	e.topBVH = bvh.Build(extents)
	logger.Infof("built %d mesh BVHs + top-level BVH in %s", len(e.meshBVH), time.Since(e.buildStart))
	return nil
}

// triPrim adapts a types.Triangle to bvh.BoundedVolume.
type triPrim struct{ t types.Triangle }

func (p triPrim) BBox() types.BoundingBox { return p.t.BBox() }
func (p triPrim) Center() types.Vec3      { return p.t.Center() }

// meshExtent adapts a mesh's overall bounds to bvh.BoundedVolume for the
// top-level BVH.
type meshExtent struct {
	id  uint32
	box types.BoundingBox
}

func (m meshExtent) BBox() types.BoundingBox { return m.box }
func (m meshExtent) Center() types.Vec3      { return m.box.Centroid() }

// Run sets the camera's chunk to the full image width, starts the stats
// timer, and drives the dispatcher event loop until the camera is
// exhausted and every in-flight job has drained (spec §4.D steps 6-8 plus
// the ScheduleJob/AfterWork/StopRender lifecycle of the same section).
func (e *Engine) Run(camDef *library.CameraDef) error {
	if e.topBVH == nil {
		return ErrNotBuilt
	}

	e.cam = camera.New(camDef, e.cfg.Width, e.cfg.Height, e.cfg.AAFactor)
	e.cam.SetChunk(0, e.cfg.Width)

	e.pool = newWorkerPool(e.maxJobs, e.onWork)
	e.statsTmr = statspkg.NewTimer(1*time.Second, e.cfg.MaxIntervals)
	ticks := e.statsTmr.Start()

	e.renderStart = time.Now()

	for i := 0; i < e.maxJobs; i++ {
		e.scheduleJob()
	}

	if e.activeJobs == 0 {
		e.stopRender()
		return nil
	}

	for {
		select {
		case results := <-e.pool.Results():
			if e.afterWork(results) {
				return nil
			}
		case <-ticks:
			if e.statsTmr.Tick(e.snapshot()) {
				e.stopRender()
				return nil
			}
		case <-e.stopped:
			return nil
		}
	}
}

func (e *Engine) snapshot() statspkg.Counters {
	return statspkg.Counters{Counters: e.counters, PrimaryProgress: e.cam.Progress()}
}

// scheduleJob is ScheduleJob (dispatcher thread): ask the camera for a
// primary ray; if it returns one, count it as produced and in flight and
// submit it to the pool. If the camera has nothing to give right now
// (throttled or exhausted), no job is submitted.
func (e *Engine) scheduleJob() {
	if e.activeJobs >= e.maxJobs {
		return
	}
	ray := e.cam.GeneratePrimary()
	if ray == nil {
		return
	}
	e.counters.IntersectsProduced++
	e.activeJobs++
	e.pool.Submit(ray)
}

// onWork is OnWork (worker thread): run the ray through ProcessRay,
// producing a fresh WorkResults.
func (e *Engine) onWork(ray *work.FatRay, rng *rand.Rand) *work.WorkResults {
	results := work.NewWorkResults()
	e.processRay(ray, results, rng)
	return results
}

// afterWork is AfterWork (dispatcher thread): apply buffer ops in listed
// order, merge counters, decrement activeJobs and schedule the next job,
// waiting out the camera throttle when nothing else is in flight. The
// render stops once no job is in flight and the camera is exhausted.
// Returns true once the render has stopped.
func (e *Engine) afterWork(results *work.WorkResults) bool {
	e.img.Apply(results.BufferOps)
	e.counters.Add(results.Counters)
	e.activeJobs--

	for _, fwd := range results.Forwards {
		if fwd.Node == 0 {
			e.activeJobs++
			e.pool.Submit(fwd.Ray)
		}
	}

	e.scheduleJob()
	for e.activeJobs == 0 && e.cam.Progress() < 100 {
		// Throttled with nothing in flight: no completion will arrive to
		// re-arm scheduling, so let the 200us gap pass and ask again.
		time.Sleep(200 * time.Microsecond)
		e.scheduleJob()
	}
	if e.activeJobs == 0 {
		e.stopRender()
		return true
	}
	return false
}

// stopRender runs on camera exhaustion + drain of in-flight jobs: stop the
// stats timer, write the EXR, and report timings, per spec §4.D
// Termination.
func (e *Engine) stopRender() {
	e.renderDur = time.Since(e.renderStart)
	e.statsTmr.Stop()
	e.pool.Close()

	path := e.cfg.OutputName + ".exr"
	if err := imageio.WriteEXR(e.img, path); err != nil {
		logger.Errorf("failed to write %s: %v", path, err)
	}

	statspkg.Report(e.counters, e.loadDur, e.buildDur, e.renderDur)
	close(e.stopped)
}

// processRay implements ProcessRay's dispatch table.
func (e *Engine) processRay(ray *work.FatRay, results *work.WorkResults, rng *rand.Rand) {
	switch ray.Kind {
	case work.Intersect:
		e.processIntersect(ray, results)
	case work.Light:
		e.processLight(ray, results)
	case work.Illuminate:
		// Reserved by spec §4.D: illumination happens inline inside
		// ProcessIntersect via IlluminateIntersection, so a ray never
		// actually arrives here already carrying this kind.
	}
}

// processIntersect implements ProcessIntersect: traverse the top-level
// BVH, descending into each hit mesh's own BVH, tracking the nearest hit
// across all candidates. On a hit, corrects the interpolated normal by
// the mesh's inverse-transpose transform and calls IlluminateIntersection.
func (e *Engine) processIntersect(ray *work.FatRay, results *work.WorkResults) {
	var hitMeshID, hitTriIdx uint32
	var hitU, hitV float32

	e.topBVH.Traverse(&ray.Traversal, ray.Ray, func(primIdx uint32, r types.SlimRay, bestT *float32) (bool, bool) {
		meshID := e.meshExtentID(primIdx)
		meshTree := e.meshBVH[meshID]
		mesh := e.lib.Mesh(meshID)
		if meshTree == nil || mesh == nil {
			return false, false
		}

		hit := false
		state := bvh.NewTraversalState()
		state.BestT = *bestT
		meshTree.Traverse(&state, r, func(triIdx uint32, r types.SlimRay, tBest *float32) (bool, bool) {
			dist, u, v, ok := mesh.Triangles[triIdx].Intersect(r, *tBest)
			if !ok {
				return false, false
			}
			*tBest = dist
			hitU, hitV = u, v
			hitMeshID, hitTriIdx = meshID, triIdx
			hit = true
			return true, false
		})
		if hit {
			*bestT = state.BestT
		}
		return hit, false
	})

	if hitMeshID != 0 {
		mesh := e.lib.Mesh(hitMeshID)
		tri := mesh.Triangles[hitTriIdx]

		ray.Hit.WorkerID = 1
		ray.Hit.MeshID = hitMeshID
		ray.Hit.T = ray.Traversal.BestT
		ray.Hit.Geom.Normal = mesh.InvTranspose.MulDir(tri.InterpolatedNormal(hitU, hitV)).Normalize()
		ray.Hit.Geom.UV = tri.InterpolatedUV(hitU, hitV)

		e.illuminateIntersection(ray, results)
	}

	results.Counters.IntersectsKilled++
}

func (e *Engine) meshExtentID(topLevelPrimIdx uint32) uint32 {
	// The top-level BVH is built directly from meshExtent values, one
	// per mesh, in mesh-id order starting at 1 (EachMesh iterates ids
	// 1..N in order), so the top-level primitive index maps back to a
	// mesh id with a constant offset.
	return topLevelPrimIdx + 1
}

// illuminateIntersection implements IlluminateIntersection: compute the
// world hit point, look up the mesh's material's shader, and invoke
// shader.Indirect.
func (e *Engine) illuminateIntersection(ray *work.FatRay, results *work.WorkResults) {
	mesh := e.lib.Mesh(ray.Hit.MeshID)
	if mesh == nil {
		results.Counters.IlluminatesKilled++
		return
	}
	sh := e.lib.Shader(mesh.MaterialID)
	if sh == nil {
		results.Counters.IlluminatesKilled++
		return
	}

	hitPoint := ray.Ray.At(ray.Hit.T)
	results.Counters.IlluminatesProduced++
	sh.Indirect(ray, hitPoint, results)
}

// processLight implements ProcessLight: a bounded occlusion test from the
// hit point toward the sampled light target; on no hit, accumulate the
// light's contribution into the primary buffer.
func (e *Engine) processLight(ray *work.FatRay, results *work.WorkResults) {
	occluded := false

	e.topBVH.Traverse(&ray.Traversal, ray.Ray, func(primIdx uint32, r types.SlimRay, bestT *float32) (bool, bool) {
		meshID := e.meshExtentID(primIdx)
		meshTree := e.meshBVH[meshID]
		mesh := e.lib.Mesh(meshID)
		if meshTree == nil || mesh == nil {
			return false, false
		}
		state := bvh.NewTraversalState()
		state.BestT = *bestT
		hit, _ := meshTree.Traverse(&state, r, func(triIdx uint32, r types.SlimRay, tBest *float32) (bool, bool) {
			_, _, _, ok := mesh.Triangles[triIdx].Intersect(r, *tBest)
			return ok, ok // any occluder is enough; suspend immediately
		})
		if hit {
			occluded = true
			return true, true
		}
		return false, false
	})

	if !occluded {
		results.Accumulate(primaryBuffer, ray.X, ray.Y, ray.Transmittance)
	}
	results.Counters.LightsKilled++
}
