package viewport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/scene"
)

const tolerance = 1e-9

func newCameras() (*scene.Node, *scene.Node) {
	main := scene.NewNode("Main Camera").WithCamera(60)
	main.Transform.Position = scene.Vector3{X: 1, Y: 2, Z: 3}
	main.Transform.Rotation = scene.Vector3{Y: 45}
	return main, scene.NewNode("Sequencer Camera")
}

func TestTakeRelease(t *testing.T) {
	main, cam := newCameras()
	c := New(main, cam)
	before := StateOf(main)

	require.True(t, c.Take())
	require.True(t, c.Holding())
	require.False(t, main.Active)
	require.True(t, cam.Active)
	require.Equal(t, before, StateOf(cam))

	saved, ok := c.Original()
	require.True(t, ok)
	require.Equal(t, before, saved)

	// Commands move the sequencer camera around.
	cam.Transform.Position = scene.Vector3{X: 10, Y: 10, Z: 10}
	cam.Camera.Size = 20

	require.True(t, c.Release())
	require.False(t, c.Holding())
	require.True(t, main.Active)
	require.False(t, cam.Active)

	after := StateOf(cam)
	require.True(t, after.Position.ApproxEqual(before.Position, tolerance))
	require.True(t, after.Rotation.ApproxEqual(before.Rotation, tolerance))
	require.InDelta(t, before.Size, after.Size, tolerance)
	require.Equal(t, before, StateOf(main))

	_, ok = c.Original()
	require.False(t, ok)
}

func TestTakeIsIdempotent(t *testing.T) {
	main, cam := newCameras()
	c := New(main, cam)

	require.True(t, c.Take())
	cam.Transform.Position = scene.Vector3{X: 9}

	// A second take must not recapture the moved pose.
	require.False(t, c.Take())
	saved, _ := c.Original()
	require.Equal(t, scene.Vector3{X: 1, Y: 2, Z: 3}, saved.Position)
}

func TestReleaseWithoutTake(t *testing.T) {
	main, cam := newCameras()
	c := New(main, cam)

	require.False(t, c.Release())
	require.True(t, c.Take())
	require.True(t, c.Release())

	cam.Transform.Position = scene.Vector3{X: 7}
	require.False(t, c.Release())
	require.Equal(t, scene.Vector3{X: 7}, cam.Transform.Position)
}

func TestAlternateCamera(t *testing.T) {
	main, cam := newCameras()
	rig := scene.NewNode("Rig")
	rig.Transform.Position = scene.Vector3{Z: -5}

	c := New(main, cam)
	c.SetAlternate(rig)
	require.Same(t, rig, c.Camera())

	require.True(t, c.Take())
	require.True(t, main.Active)
	rig.Transform.Position = scene.Vector3{Z: 5}

	require.True(t, c.Release())
	require.Equal(t, scene.Vector3{Z: -5}, rig.Transform.Position)
}

func TestSwitchTo(t *testing.T) {
	main, cam := newCameras()
	c := New(main, cam)
	require.True(t, c.Take())

	next := scene.NewNode("Cinematic Camera")
	c.SwitchTo(next)

	require.True(t, c.Holding())
	require.Same(t, next, c.Camera())
	require.False(t, cam.Active)
	require.True(t, next.Active)
	require.Equal(t, StateOf(main), StateOf(next))

	require.True(t, c.Release())
	require.True(t, main.Active)
}

func TestShot(t *testing.T) {
	main, cam := newCameras()
	c := New(main, cam)
	actor := scene.NewNode("Alice")

	closeup, ok := c.Shot("closeup", actor)
	require.True(t, ok)
	require.InDelta(t, 1.2, closeup.Position.Z, tolerance)
	require.InDelta(t, 1.6, closeup.Position.Y, tolerance)
	require.InDelta(t, 180, closeup.Rotation.Y, tolerance)

	def, ok := c.Shot("default", actor)
	require.True(t, ok)
	require.Equal(t, closeup, def)

	_, ok = c.Shot("original", actor)
	require.False(t, ok)
	require.True(t, c.Take())
	original, ok := c.Shot("original", nil)
	require.True(t, ok)
	require.Equal(t, StateOf(main), original)

	_, ok = c.Shot("Dutch", actor)
	require.False(t, ok)

	c.SetAngle("Dutch", Angle{Distance: 3, Size: 35})
	dutch, ok := c.Shot("Dutch", actor)
	require.True(t, ok)
	require.Equal(t, 35.0, dutch.Size)
}
