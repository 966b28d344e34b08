package repo

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tictacarm/internal/domain/pose"
	errs "tictacarm/internal/errors"
)

//go:embed calibration.schema.json
var calibrationSchemaJSON string

const calibrationSchemaURL = "https://tictacarm.local/schemas/calibration.schema.json"

var calibrationSchema = mustCompileCalibrationSchema()

func mustCompileCalibrationSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(calibrationSchemaURL, strings.NewReader(calibrationSchemaJSON)); err != nil {
		panic(fmt.Sprintf("calibration schema load failed: %v", err))
	}
	return c.MustCompile(calibrationSchemaURL)
}

// LoadCalibration reads the calibration file written by the calibration
// tool: {"1": [a, b, c, d], ..., "9": [...]}.
func LoadCalibration(path string) (pose.CalibrationMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfig, err)
	}
	defer f.Close()
	return ParseCalibration(f)
}

// ParseCalibration validates and decodes a calibration document. Missing
// cells are allowed; anything malformed or out of range fails the whole load.
func ParseCalibration(r io.Reader) (pose.CalibrationMap, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", errs.ErrConfig, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", errs.ErrConfig, err)
	}
	if err := calibrationSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfig, err)
	}

	var entries map[string][]float64
	decoder := json.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfig, err)
	}

	poses := make(pose.CalibrationMap, len(entries))
	for key, angles := range entries {
		cell, err := strconv.Atoi(key)
		if err != nil || !pose.ValidCell(cell) {
			return nil, fmt.Errorf("%w: bad cell id %q", errs.ErrConfig, key)
		}
		if len(angles) != pose.Joints {
			return nil, fmt.Errorf("%w: cell %d has %d angles", errs.ErrConfig, cell, len(angles))
		}
		var p pose.JointPose
		copy(p[:], angles)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: cell %d pose %v out of range", errs.ErrConfig, cell, p)
		}
		poses[cell] = p
	}
	return poses, nil
}

// PoseRepository is the read-only cell to pose lookup.
type PoseRepository struct {
	poses pose.CalibrationMap
}

func NewPoseRepository(poses pose.CalibrationMap) *PoseRepository {
	own := make(pose.CalibrationMap, len(poses))
	for cell, p := range poses {
		own[cell] = p
	}
	return &PoseRepository{poses: own}
}

func (p *PoseRepository) Lookup(cell int) (pose.JointPose, bool) {
	jp, ok := p.poses[cell]
	return jp, ok
}

// Calibrated lists the calibrated cell ids in order.
func (p *PoseRepository) Calibrated() []int {
	cells := make([]int, 0, len(p.poses))
	for cell := range p.poses {
		cells = append(cells, cell)
	}
	sort.Ints(cells)
	return cells
}

// Missing lists the cells that have no pose.
func (p *PoseRepository) Missing() []int {
	var missing []int
	for cell := pose.FirstCell; cell <= pose.LastCell; cell++ {
		if _, ok := p.poses[cell]; !ok {
			missing = append(missing, cell)
		}
	}
	return missing
}
