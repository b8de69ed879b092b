package scene

import (
	"sort"
	"time"
)

// Node is a scene entity a sequence can address by name: an actor, a prop or
// a camera. It is a headless model; renderers mirror its state.
type Node struct {
	Name      string
	Transform Transform
	Active    bool

	// Portrait is the current portrait texture name ("" = default).
	Portrait string

	Animator *Animator
	Camera   *Camera
	Audio    *AudioSource

	disabled map[string]bool
	handlers map[string][]func(arg string)
}

// NewNode returns an active node.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Active:   true,
		disabled: make(map[string]bool),
		handlers: make(map[string][]func(string)),
	}
}

// WithAnimator attaches an animator and returns the node.
func (n *Node) WithAnimator(a *Animator) *Node {
	n.Animator = a
	return n
}

// WithCamera attaches a camera and returns the node.
func (n *Node) WithCamera(size float64) *Node {
	n.Camera = &Camera{Size: size}
	return n
}

// WithAudio attaches an audio source and returns the node.
func (n *Node) WithAudio() *Node {
	n.Audio = &AudioSource{}
	return n
}

// ComponentEnabled reports whether a named component is enabled. Components
// are enabled until explicitly disabled.
func (n *Node) ComponentEnabled(component string) bool {
	return !n.disabled[component]
}

// SetComponentEnabled toggles a named component.
func (n *Node) SetComponentEnabled(component string, enabled bool) {
	if n.disabled == nil {
		n.disabled = make(map[string]bool)
	}
	if enabled {
		delete(n.disabled, component)
		return
	}
	n.disabled[component] = true
}

// DisabledComponents lists disabled components, sorted.
func (n *Node) DisabledComponents() []string {
	out := make([]string, 0, len(n.disabled))
	for name := range n.disabled {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// On registers a handler for a method name delivered by Receive.
func (n *Node) On(method string, fn func(arg string)) {
	if n.handlers == nil {
		n.handlers = make(map[string][]func(string))
	}
	n.handlers[method] = append(n.handlers[method], fn)
}

// Receive invokes every handler registered for method and reports whether
// any handler existed. Inactive nodes don't receive messages.
func (n *Node) Receive(method, arg string) bool {
	if !n.Active {
		return false
	}
	handlers := n.handlers[method]
	for _, fn := range handlers {
		fn(arg)
	}
	return len(handlers) > 0
}

// Camera is a projection component.
type Camera struct {
	// Size is the orthographic size or field of view.
	Size float64
}

// AudioSource records clips played on a node.
type AudioSource struct {
	Played []string
}

// PlayOneShot records a clip.
func (a *AudioSource) PlayOneShot(clip string) {
	a.Played = append(a.Played, clip)
}

// Animator is a minimal animation state holder: clip lengths, per-layer
// states and typed parameters.
type Animator struct {
	Controller string

	clips   map[string]time.Duration
	states  map[int]string
	weights map[int]float64
	bools   map[string]bool
	ints    map[string]int
	floats  map[string]float64
	fired   map[string]int
}

// NewAnimator returns an animator that knows the given clip lengths.
func NewAnimator(clips map[string]time.Duration) *Animator {
	a := &Animator{
		clips:   make(map[string]time.Duration, len(clips)),
		states:  make(map[int]string),
		weights: map[int]float64{0: 1},
		bools:   make(map[string]bool),
		ints:    make(map[string]int),
		floats:  make(map[string]float64),
		fired:   make(map[string]int),
	}
	for name, length := range clips {
		a.clips[name] = length
	}
	return a
}

// SetClips replaces the known clips, as when a new controller is assigned.
func (a *Animator) SetClips(clips map[string]time.Duration) {
	a.clips = make(map[string]time.Duration, len(clips))
	for name, length := range clips {
		a.clips[name] = length
	}
}

// ClipLength returns a clip's length.
func (a *Animator) ClipLength(name string) (time.Duration, bool) {
	length, ok := a.clips[name]
	return length, ok
}

// Play switches a layer to a state.
func (a *Animator) Play(state string, layer int) {
	a.states[layer] = state
}

// CrossFade switches layer 0 to clip and returns the clip length (zero for
// unknown clips).
func (a *Animator) CrossFade(clip string) time.Duration {
	a.states[0] = clip
	return a.clips[clip]
}

// State returns a layer's current state.
func (a *Animator) State(layer int) string {
	return a.states[layer]
}

// SetBool sets a bool parameter.
func (a *Animator) SetBool(name string, v bool) { a.bools[name] = v }

// Bool returns a bool parameter.
func (a *Animator) Bool(name string) bool { return a.bools[name] }

// SetInt sets an int parameter.
func (a *Animator) SetInt(name string, v int) { a.ints[name] = v }

// Int returns an int parameter.
func (a *Animator) Int(name string) int { return a.ints[name] }

// SetFloat sets a float parameter.
func (a *Animator) SetFloat(name string, v float64) { a.floats[name] = v }

// Float returns a float parameter.
func (a *Animator) Float(name string) float64 { return a.floats[name] }

// SetTrigger fires a trigger parameter.
func (a *Animator) SetTrigger(name string) { a.fired[name]++ }

// TriggerCount returns how often a trigger fired.
func (a *Animator) TriggerCount(name string) int { return a.fired[name] }

// SetLayerWeight sets a layer's blend weight.
func (a *Animator) SetLayerWeight(layer int, w float64) { a.weights[layer] = w }

// LayerWeight returns a layer's blend weight (layers default to 0, the base layer to 1).
func (a *Animator) LayerWeight(layer int) float64 { return a.weights[layer] }
