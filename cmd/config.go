// Package cmd wires the CLI surface (github.com/urfave/cli, matching the
// teacher's main.go/cmd/render.go exactly) and the JSON config decoder.
// Config loading stays a thin external collaborator per spec.md's
// non-goal, hence encoding/json from the standard library rather than a
// third-party config library — none of the retrieved example repos pull
// one in either (see DESIGN.md).
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
)

type jsonConfig struct {
	Width      uint32   `json:"width"`
	Height     uint32   `json:"height"`
	Buffers    []string `json:"buffers"`
	AAFactor   uint32   `json:"aa_factor"`
	OutputName string   `json:"output_name"`

	Camera struct {
		Eye      [3]float32 `json:"eye"`
		Look     [3]float32 `json:"look"`
		Up       [3]float32 `json:"up"`
		FOV      float32    `json:"fov"`
		Rotation float32    `json:"rotation"`
	} `json:"camera"`
}

// loadConfig reads and validates the render config file, fail-fast with a
// descriptive message per spec §7's Configuration error policy.
func loadConfig(path string) (*library.Config, *library.CameraDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cmd: opening config %s: %w", path, err)
	}
	defer f.Close()

	var raw jsonConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("cmd: parsing config %s: %w", path, err)
	}

	if raw.Width == 0 || raw.Height == 0 {
		return nil, nil, fmt.Errorf("cmd: config %s: width and height must be nonzero", path)
	}
	if raw.OutputName == "" {
		return nil, nil, fmt.Errorf("cmd: config %s: output_name is required", path)
	}
	if len(raw.Buffers) == 0 {
		raw.Buffers = []string{"color"}
	}

	cfg := &library.Config{
		Width:      raw.Width,
		Height:     raw.Height,
		Buffers:    raw.Buffers,
		AAFactor:   raw.AAFactor,
		OutputName: raw.OutputName,
	}

	camDef := &library.CameraDef{
		Eye:        toVec3(raw.Camera.Eye),
		Look:       toVec3(raw.Camera.Look),
		Up:         toVec3(raw.Camera.Up),
		FovDegrees: raw.Camera.FOV,
		Rotation:   raw.Camera.Rotation,
	}
	if camDef.Up == (types.Vec3{}) {
		camDef.Up = types.XYZ(0, 1, 0)
	}

	return cfg, camDef, nil
}

func toVec3(a [3]float32) types.Vec3 {
	return types.XYZ(a[0], a[1], a[2])
}
