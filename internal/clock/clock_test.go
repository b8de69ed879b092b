package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeWall struct {
	t time.Time
}

func (f *fakeWall) now() time.Time { return f.t }

func (f *fakeWall) add(d time.Duration) { f.t = f.t.Add(d) }

func TestGameExcludesPausedTime(t *testing.T) {
	wall := &fakeWall{t: time.Unix(1000, 0)}
	c := NewGameWithSource(wall.now)

	wall.add(2 * time.Second)
	require.Equal(t, 2*time.Second, c.Now())

	c.Pause()
	require.True(t, c.Paused())
	wall.add(5 * time.Second)
	require.Equal(t, 2*time.Second, c.Now(), "paused clock must not advance")

	c.Pause()
	c.Resume()
	require.False(t, c.Paused())
	wall.add(time.Second)
	require.Equal(t, 3*time.Second, c.Now())

	c.Resume()
	require.Equal(t, 3*time.Second, c.Now())
}

func TestManual(t *testing.T) {
	c := NewManual()
	c.Advance(1500 * time.Millisecond)
	require.Equal(t, 1500*time.Millisecond, c.Now())

	c.Pause()
	c.Advance(time.Second)
	require.Equal(t, 1500*time.Millisecond, c.Now())

	c.Resume()
	c.Set(time.Second)
	require.Equal(t, 1500*time.Millisecond, c.Now(), "Set must not go backwards")
	c.Set(3 * time.Second)
	require.Equal(t, 3*time.Second, c.Now())
}

func TestSeconds(t *testing.T) {
	require.Equal(t, 2500*time.Millisecond, Seconds(2.5))
	require.Equal(t, time.Duration(0), Seconds(0))
}
