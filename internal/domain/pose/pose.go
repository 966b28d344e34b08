package pose

const (
	Joints       = 4
	MinAngle     = 0.0
	MaxAngle     = 180.0
	NeutralAngle = 90.0

	FirstCell = 1
	LastCell  = 9
)

// JointPose is a commanded arm configuration, one angle in degrees per joint.
type JointPose [Joints]float64

// Neutral is the home pose of the arm.
var Neutral = JointPose{NeutralAngle, NeutralAngle, NeutralAngle, NeutralAngle}

// Valid reports whether every angle is within [MinAngle, MaxAngle].
func (p JointPose) Valid() bool {
	for _, a := range p {
		if a < MinAngle || a > MaxAngle {
			return false
		}
	}
	return true
}

// Clamp pins every angle into [MinAngle, MaxAngle].
func (p JointPose) Clamp() JointPose {
	var out JointPose
	for j, a := range p {
		out[j] = clamp(a, MinAngle, MaxAngle)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// JointMask marks the joints under autonomous control. Unmasked joints are
// held at NeutralAngle on the wire.
type JointMask [Joints]bool

// DrivenJoints is the arm's default mask: base, shoulder and elbow move,
// the wrist stays neutral.
var DrivenJoints = JointMask{true, true, true, false}

// AllJoints drives every joint.
var AllJoints = JointMask{true, true, true, true}

// CalibrationMap is the recorded pose for each board cell, keyed 1..9.
type CalibrationMap map[int]JointPose

// ValidCell reports whether cell is a board cell id (1..9).
func ValidCell(cell int) bool {
	return cell >= FirstCell && cell <= LastCell
}
