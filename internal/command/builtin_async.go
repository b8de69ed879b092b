package command

import (
	"strings"
	"time"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

func registerBuiltinAsync(r *Registry) {
	r.RegisterAsync("Delay", func() Async { return &delayCommand{} })
	r.RegisterAsync("Camera", func() Async { return &cameraCommand{} })
	r.RegisterAsync("Animation", func() Async { return &animationCommand{} })
	r.RegisterAsync("AnimatorFloat", func() Async { return &animatorFloatCommand{} })
	r.RegisterAsync("AnimatorLayer", func() Async { return &animatorLayerCommand{} })
	r.RegisterAsync("MoveTo", func() Async { return &moveToCommand{} })
	r.RegisterAsync("LookAt", func() Async { return &lookAtCommand{} })
	r.RegisterAsync("Fade", func() Async { return &fadeCommand{} })
	r.RegisterAsync("AudioWait", func() Async { return &audioWaitCommand{} })
	r.RegisterAsync("WaitForMessage", func() Async { return &waitForMessageCommand{} })
}

// Delay(seconds)
type delayCommand struct {
	Base
	tween Tween
}

func (c *delayCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	c.tween.Duration = args.Seconds(0)
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *delayCommand) Advance(dt time.Duration) {
	if c.tween.Step(dt) >= 1 {
		c.Finish()
	}
}

// Camera(angle, [subject], duration) moves the camera over time.
type cameraCommand struct {
	Base
	camera   *scene.Node
	from, to viewport.CameraState
	tween    Tween
}

func (c *cameraCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	shot, ok := cameraShot(env, args)
	if !ok {
		c.Finish()
		return
	}
	c.camera = env.Viewport.Camera()
	c.from = viewport.StateOf(c.camera)
	c.to = shot
	c.tween.Duration = args.Seconds(2)
}

func (c *cameraCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	viewport.Lerp(c.from, c.to, c.tween.Step(dt)).Apply(c.camera)
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *cameraCommand) Stop() {
	if !c.Finished() && c.camera != nil {
		c.to.Apply(c.camera)
	}
	c.Finish()
}

// Animation(clip, [subject], clip2, ...) plays clips back to back.
type animationCommand struct {
	Base
	animator *scene.Animator
	clips    []string
	current  int
	tween    Tween
}

func (c *animationCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	c.animator = animatorOf(env, "Animation", args.String(1, ""))
	if c.animator == nil {
		c.Finish()
		return
	}
	c.clips = append(c.clips, args.String(0, ""))
	for i := 2; i < len(args); i++ {
		if clip := args.String(i, ""); clip != "" {
			c.clips = append(c.clips, clip)
		}
	}
	c.play(0)
}

func (c *animationCommand) play(i int) {
	c.current = i
	c.tween = Tween{Duration: c.animator.CrossFade(c.clips[i])}
}

func (c *animationCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	c.tween.Step(dt)
	for c.tween.Done() {
		if c.current+1 >= len(c.clips) {
			c.Finish()
			return
		}
		overflow := c.tween.Elapsed - c.tween.Duration
		c.play(c.current + 1)
		c.tween.Elapsed = overflow
	}
}

func (c *animationCommand) Stop() {
	if !c.Finished() && c.animator != nil {
		c.animator.CrossFade(c.clips[len(c.clips)-1])
	}
	c.Finish()
}

// AnimatorFloat(param, value, [subject], duration)
type animatorFloatCommand struct {
	Base
	animator *scene.Animator
	param    string
	from, to float64
	tween    Tween
}

func (c *animatorFloatCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	c.animator = animatorOf(env, "AnimatorFloat", args.String(2, ""))
	if c.animator == nil {
		c.Finish()
		return
	}
	c.param = args.String(0, "")
	c.from = c.animator.Float(c.param)
	c.to = args.Float(1, 1)
	c.tween.Duration = args.Seconds(3)
}

func (c *animatorFloatCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	c.animator.SetFloat(c.param, scene.LerpFloat(c.from, c.to, c.tween.Step(dt)))
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *animatorFloatCommand) Stop() {
	if !c.Finished() && c.animator != nil {
		c.animator.SetFloat(c.param, c.to)
	}
	c.Finish()
}

// AnimatorLayer(layer, [weight], [subject], duration)
type animatorLayerCommand struct {
	Base
	animator *scene.Animator
	layer    int
	from, to float64
	tween    Tween
}

func (c *animatorLayerCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	c.animator = animatorOf(env, "AnimatorLayer", args.String(2, ""))
	if c.animator == nil {
		c.Finish()
		return
	}
	c.layer = args.Int(0, 1)
	c.from = c.animator.LayerWeight(c.layer)
	c.to = args.Float(1, 1)
	c.tween.Duration = args.Seconds(3)
}

func (c *animatorLayerCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	c.animator.SetLayerWeight(c.layer, scene.LerpFloat(c.from, c.to, c.tween.Step(dt)))
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *animatorLayerCommand) Stop() {
	if !c.Finished() && c.animator != nil {
		c.animator.SetLayerWeight(c.layer, c.to)
	}
	c.Finish()
}

// MoveTo(target, [subject], duration)
type moveToCommand struct {
	Base
	subject  *scene.Node
	from, to scene.Transform
	tween    Tween
}

func (c *moveToCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	target := env.subject("MoveTo", args.String(0, ""))
	c.subject = env.subject("MoveTo", args.String(1, ""))
	if target == nil || c.subject == nil {
		c.Finish()
		return
	}
	c.from = c.subject.Transform
	c.to = target.Transform
	c.tween.Duration = args.Seconds(2)
}

func (c *moveToCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	t := c.tween.Step(dt)
	c.subject.Transform.Position = scene.Lerp(c.from.Position, c.to.Position, t)
	c.subject.Transform.Rotation = scene.Lerp(c.from.Rotation, c.to.Rotation, t)
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *moveToCommand) Stop() {
	if !c.Finished() && c.subject != nil {
		c.subject.Transform = c.to
	}
	c.Finish()
}

// LookAt([target], [subject], duration, [allAxes])
type lookAtCommand struct {
	Base
	subject  *scene.Node
	from, to scene.Vector3
	tween    Tween
}

func (c *lookAtCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	target := env.subject("LookAt", args.String(0, scene.Listener))
	c.subject = env.subject("LookAt", args.String(1, ""))
	if target == nil || c.subject == nil {
		c.Finish()
		return
	}
	c.from = c.subject.Transform.Rotation
	c.to = scene.LookRotation(c.subject.Transform.Position, target.Transform.Position, !args.Bool(3, false))
	c.tween.Duration = args.Seconds(2)
}

func (c *lookAtCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	c.subject.Transform.Rotation = scene.Lerp(c.from, c.to, c.tween.Step(dt))
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *lookAtCommand) Stop() {
	if !c.Finished() && c.subject != nil {
		c.subject.Transform.Rotation = c.to
	}
	c.Finish()
}

// Fade(in|out|stay, duration): out goes to black, in comes back, stay holds
// black for the duration.
type fadeCommand struct {
	Base
	from, to float64
	tween    Tween
}

func (c *fadeCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	switch strings.ToLower(args.String(0, "out")) {
	case "in":
		c.from, c.to = 1, 0
	case "stay":
		c.from, c.to = 1, 1
	default:
		c.from, c.to = 0, 1
	}
	c.tween.Duration = args.Seconds(1)
	env.presenter().SetFade(c.from)
	if c.tween.Done() {
		env.presenter().SetFade(c.to)
		c.Finish()
	}
}

func (c *fadeCommand) Advance(dt time.Duration) {
	if c.Finished() {
		return
	}
	c.Env().presenter().SetFade(scene.LerpFloat(c.from, c.to, c.tween.Step(dt)))
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *fadeCommand) Stop() {
	if !c.Finished() {
		c.Env().presenter().SetFade(c.to)
	}
	c.Finish()
}

// AudioWait(clip, [subject]) plays a clip and finishes when it ends.
type audioWaitCommand struct {
	Base
	tween Tween
}

func (c *audioWaitCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	c.tween.Duration = audio(env, args).Duration()
	if c.tween.Done() {
		c.Finish()
	}
}

func (c *audioWaitCommand) Advance(dt time.Duration) {
	if c.tween.Step(dt) >= 1 {
		c.Finish()
	}
}

// WaitForMessage(name) finishes when name is sent on the bus.
type waitForMessageCommand struct {
	Base
	unsubscribe func()
}

func (c *waitForMessageCommand) Start(env *Env, args Args) {
	c.Base.Start(env, args)
	name := args.String(0, "")
	if env.Bus == nil || name == "" {
		env.warn("WaitForMessage", "no bus or message name").Msg("nothing to wait for")
		c.Finish()
		return
	}
	c.unsubscribe = env.Bus.Subscribe(bus.ListenerFunc(func(msg string) {
		if msg == name {
			c.Finish()
		}
	}))
}

func (c *waitForMessageCommand) Release() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
