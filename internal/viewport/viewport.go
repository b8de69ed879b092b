// Package viewport transfers camera control to a running sequence and
// restores it afterwards.
package viewport

import (
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/scene"
)

// Reserved angle names.
const (
	AngleOriginal = "original"
	AngleDefault  = "default"
)

// CameraState is a camera pose and projection size.
type CameraState struct {
	Position scene.Vector3 `json:"position"`
	Rotation scene.Vector3 `json:"rotation"`
	Size     float64       `json:"size"`
}

// StateOf reads the pose of a camera node. Nodes without a camera component
// report size 0.
func StateOf(n *scene.Node) CameraState {
	if n == nil {
		return CameraState{}
	}
	state := CameraState{Position: n.Transform.Position, Rotation: n.Transform.Rotation}
	if n.Camera != nil {
		state.Size = n.Camera.Size
	}
	return state
}

// Apply writes a pose onto a camera node.
func (s CameraState) Apply(n *scene.Node) {
	if n == nil {
		return
	}
	n.Transform.Position = s.Position
	n.Transform.Rotation = s.Rotation
	if n.Camera == nil {
		n.Camera = &scene.Camera{}
	}
	n.Camera.Size = s.Size
}

// Lerp interpolates between two poses.
func Lerp(a, b CameraState, t float64) CameraState {
	return CameraState{
		Position: scene.Lerp(a.Position, b.Position, t),
		Rotation: scene.Lerp(a.Rotation, b.Rotation, t),
		Size:     scene.LerpFloat(a.Size, b.Size, t),
	}
}

// Angle places the camera relative to a subject: Distance in front of it,
// Height above its origin, tilted down by Pitch degrees.
type Angle struct {
	Distance float64
	Height   float64
	Pitch    float64
	Size     float64
}

// DefaultAngles returns the stock camera angles.
func DefaultAngles() map[string]Angle {
	return map[string]Angle{
		"Closeup":  {Distance: 1.2, Height: 1.6, Pitch: 5, Size: 30},
		"Medium":   {Distance: 2.5, Height: 1.5, Pitch: 5, Size: 40},
		"Full":     {Distance: 4, Height: 1.2, Pitch: 0, Size: 50},
		"Wide":     {Distance: 8, Height: 2.5, Pitch: 10, Size: 60},
		"Overhead": {Distance: 0.5, Height: 8, Pitch: 85, Size: 60},
	}
}

// Controller owns the take/release handshake for one sequencer camera.
type Controller struct {
	mu sync.Mutex

	original  *scene.Node
	camera    *scene.Node
	alternate *scene.Node

	holding  bool
	saved    CameraState
	hasSaved bool

	angles map[string]Angle
	logger zerolog.Logger
}

// New returns a controller that hands control from original (the scene's
// main camera, may be nil) to camera (the sequencer's own camera).
func New(original, camera *scene.Node) *Controller {
	if camera != nil {
		camera.Active = false
		if camera.Camera == nil {
			camera.Camera = &scene.Camera{}
		}
	}
	return &Controller{
		original: original,
		camera:   camera,
		angles:   DefaultAngles(),
		logger:   logging.Component("viewport"),
	}
}

// SetAlternate configures an existing scene object to be moved instead of
// the sequencer camera. Nil clears it.
func (c *Controller) SetAlternate(n *scene.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alternate = n
}

// SetAngle adds or replaces a named angle.
func (c *Controller) SetAngle(name string, a Angle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.angles[name] = a
}

// Take captures the current camera pose and switches to the sequencer
// camera. It reports false when control was already held.
func (c *Controller) Take() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takeLocked()
}

func (c *Controller) takeLocked() bool {
	if c.holding {
		return false
	}

	source := c.original
	if c.alternate != nil {
		source = c.alternate
	}
	if source == nil {
		c.logger.Warn().Msg("no camera to take control from; capturing origin")
	}
	c.saved = StateOf(source)
	c.hasSaved = true

	if c.alternate == nil {
		if c.original != nil {
			c.original.Active = false
		}
		if c.camera != nil {
			c.saved.Apply(c.camera)
			c.camera.Active = true
		}
	}

	c.holding = true
	c.logger.Debug().Interface("state", c.saved).Msg("camera control taken")
	return true
}

// Release restores the captured pose and hands control back to the original
// camera. It reports false when control was not held.
func (c *Controller) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *Controller) releaseLocked() bool {
	if !c.holding {
		return false
	}

	if moved := c.movedLocked(); moved != nil && c.hasSaved {
		c.saved.Apply(moved)
	}
	if c.alternate == nil {
		if c.camera != nil {
			c.camera.Active = false
		}
		if c.original != nil {
			c.original.Active = true
		}
	}

	c.holding = false
	c.hasSaved = false
	c.logger.Debug().Msg("camera control released")
	return true
}

// SwitchTo releases control, drops the current sequencer camera, adopts cam
// and takes control again.
func (c *Controller) SwitchTo(cam *scene.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	if c.camera != nil && c.camera != cam {
		c.camera.Active = false
	}
	c.camera = cam
	if cam != nil && cam.Camera == nil {
		cam.Camera = &scene.Camera{}
	}
	c.takeLocked()
}

// Holding reports whether control is held.
func (c *Controller) Holding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holding
}

// Camera returns the node camera commands move: the alternate object if one
// is configured, otherwise the sequencer camera.
func (c *Controller) Camera() *scene.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.movedLocked()
}

func (c *Controller) movedLocked() *scene.Node {
	if c.alternate != nil {
		return c.alternate
	}
	return c.camera
}

// Original returns the pose captured by the current take.
func (c *Controller) Original() (CameraState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved, c.hasSaved
}

// Shot computes the pose for a named angle on subject. "original" returns
// the captured pose and "default" is Closeup. Angle names match
// case-insensitively.
func (c *Controller) Shot(angle string, subject *scene.Node) (CameraState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	angle = strings.TrimSpace(angle)
	if strings.EqualFold(angle, AngleOriginal) {
		return c.saved, c.hasSaved
	}
	if strings.EqualFold(angle, AngleDefault) {
		angle = "Closeup"
	}

	a, ok := c.angles[angle]
	if !ok {
		for name, candidate := range c.angles {
			if strings.EqualFold(name, angle) {
				a, ok = candidate, true
				break
			}
		}
	}
	if !ok || subject == nil {
		return CameraState{}, false
	}

	yaw := subject.Transform.Rotation.Y
	rad := yaw * math.Pi / 180
	forward := scene.Vector3{X: math.Sin(rad), Z: math.Cos(rad)}

	return CameraState{
		Position: subject.Transform.Position.Add(forward.Scale(a.Distance)).Add(scene.Vector3{Y: a.Height}),
		Rotation: scene.Vector3{X: a.Pitch, Y: math.Mod(yaw+180, 360)},
		Size:     a.Size,
	}, true
}
