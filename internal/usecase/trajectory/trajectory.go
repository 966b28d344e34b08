package trajectory

import (
	"math"

	"tictacarm/internal/domain/pose"
)

// Ease is the smoothstep curve t²(3-2t): zero velocity at both ends and
// symmetric about t = 0.5.
func Ease(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Interpolate returns steps waypoints from start to target, sampled at
// t = i/steps for i = 1..steps. Values are left unrounded and never leave
// the span between the endpoints; the last waypoint is exactly target.
func Interpolate(start, target pose.JointPose, steps int) []pose.JointPose {
	if steps <= 0 {
		return nil
	}
	seq := make([]pose.JointPose, steps)
	for i := 1; i < steps; i++ {
		s := Ease(float64(i) / float64(steps))
		var p pose.JointPose
		for j := range p {
			lo, hi := math.Min(start[j], target[j]), math.Max(start[j], target[j])
			p[j] = math.Min(math.Max(start[j]+(target[j]-start[j])*s, lo), hi)
		}
		seq[i-1] = p
	}
	seq[steps-1] = target
	return seq
}
