package motion

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tictacarm/internal/domain/pose"
	errs "tictacarm/internal/errors"
	"tictacarm/internal/usecase/trajectory"
)

// Link is the byte channel to the arm controller.
type Link interface {
	Write(p []byte) (int, error)
	Available() bool
}

// PoseStore resolves a board cell id to its calibrated pose.
type PoseStore interface {
	Lookup(cell int) (pose.JointPose, bool)
}

// Config paces trajectories: steps and per-step delay for cell moves and
// homing, the settle pause after each, and which joints are driven.
type Config struct {
	MoveSteps  int
	MoveDelay  time.Duration
	MoveSettle time.Duration
	HomeSteps  int
	HomeDelay  time.Duration
	HomeSettle time.Duration
	Driven     pose.JointMask
}

func DefaultConfig() Config {
	return Config{
		MoveSteps:  25,
		MoveDelay:  20 * time.Millisecond,
		MoveSettle: 300 * time.Millisecond,
		HomeSteps:  20,
		HomeDelay:  20 * time.Millisecond,
		HomeSettle: 200 * time.Millisecond,
		Driven:     pose.DrivenJoints,
	}
}

// Driver streams trajectories to the link. Motion is open loop: the
// driver only knows the pose it last commanded.
//
// A trajectory, once started, runs to completion; ctx is checked only
// before it begins.
type Driver struct {
	link  Link
	poses PoseStore
	cfg   Config
	log   *zap.SugaredLogger
	sleep func(time.Duration)

	mu      sync.Mutex
	current pose.JointPose
}

func NewDriver(link Link, poses PoseStore, cfg Config, log *zap.SugaredLogger) *Driver {
	return &Driver{
		link:    link,
		poses:   poses,
		cfg:     cfg,
		log:     log,
		sleep:   time.Sleep,
		current: pose.Neutral,
	}
}

// WithSleeper replaces time.Sleep, used by tests to run without pacing.
func (d *Driver) WithSleeper(sleep func(time.Duration)) *Driver {
	d.sleep = sleep
	return d
}

func (d *Driver) Current() pose.JointPose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Driver) Available() bool {
	return d.link != nil && d.link.Available()
}

// Drive sends every pose as one frame, pausing delay after each.
// Without a link it does nothing.
func (d *Driver) Drive(seq []pose.JointPose, delay time.Duration) {
	if !d.Available() {
		return
	}
	for _, p := range seq {
		frame := EncodeFrame(p, d.cfg.Driven)
		if _, err := d.link.Write(frame); err != nil {
			d.log.Debugf("frame write failed: %v", err)
		}
		if delay > 0 {
			d.sleep(delay)
		}
	}
}

// MoveToCell drives the arm to the calibrated pose of cell (1..9).
func (d *Driver) MoveToCell(ctx context.Context, cell int) error {
	target, ok := d.poses.Lookup(cell)
	if !ok {
		return fmt.Errorf("%w: cell %d", errs.ErrUncalibratedCell, cell)
	}
	return d.moveTo(ctx, target, d.cfg.MoveSteps, d.cfg.MoveDelay, d.cfg.MoveSettle)
}

// Home returns the arm to the neutral pose.
func (d *Driver) Home(ctx context.Context) error {
	return d.moveTo(ctx, pose.Neutral, d.cfg.HomeSteps, d.cfg.HomeDelay, d.cfg.HomeSettle)
}

func (d *Driver) moveTo(ctx context.Context, target pose.JointPose, steps int, delay, settle time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.Available() {
		return errs.ErrLinkUnavailable
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	seq := trajectory.Interpolate(d.current, target, steps)
	if len(seq) == 0 {
		// nothing was sent, so the arm is still where it was
		return fmt.Errorf("trajectory has %d steps", steps)
	}
	d.log.Debugw("driving trajectory", "from", d.current, "to", target, "steps", len(seq))
	d.Drive(seq, delay)
	d.current = target
	if settle > 0 {
		d.sleep(settle)
	}
	return nil
}

// EncodeFrame renders a pose as "a,b,c,d\n". Angles are clamped to the
// valid range and truncated to whole degrees; joints outside driven are
// sent as the neutral angle.
func EncodeFrame(p pose.JointPose, driven pose.JointMask) []byte {
	for j, a := range p {
		if !driven[j] || math.IsNaN(a) {
			p[j] = pose.NeutralAngle
		}
	}
	p = p.Clamp()

	buf := make([]byte, 0, 16)
	for j, a := range p {
		if j > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(a), 10)
	}
	return append(buf, '\n')
}
