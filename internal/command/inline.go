package command

import (
	"strings"
	"time"

	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

func registerBuiltinInline(r *Registry) {
	r.RegisterInline(NoneCommand, func(*Env, Args) Result { return Handled(0) })
	r.RegisterInline("Camera", cameraInline)
	r.RegisterInline("Animation", animationInline)
	r.RegisterInline("AnimatorPlay", animatorPlay)
	r.RegisterInline("AnimatorBool", animatorBool)
	r.RegisterInline("AnimatorInt", animatorInt)
	r.RegisterInline("AnimatorTrigger", animatorTrigger)
	r.RegisterInline("AnimatorFloat", animatorFloatInline)
	r.RegisterInline("AnimatorLayer", animatorLayerInline)
	r.RegisterInline("AnimatorController", animatorController)
	r.RegisterInline("Audio", audio)
	r.RegisterInline("MoveTo", moveToInline)
	r.RegisterInline("LookAt", lookAtInline)
	r.RegisterInline("SendMessage", sendMessage)
	r.RegisterInline("SetActive", setActive)
	r.RegisterInline("SetEnabled", setEnabled)
	r.RegisterInline("SetPortrait", setPortrait)
	r.RegisterInline("ShowAlert", showAlert)
	r.RegisterInline("Lua", runLua)
	r.RegisterInline("SetVariable", setVariable)
}

// cameraShot resolves the target pose of Camera(angle, subject).
func cameraShot(env *Env, args Args) (viewport.CameraState, bool) {
	if env.Viewport == nil {
		env.warn("Camera", "no viewport").Msg("camera unavailable")
		return viewport.CameraState{}, false
	}
	if !env.TakeCamera() {
		env.warn("Camera", "camera held").Msg("camera is controlled by another sequence")
		return viewport.CameraState{}, false
	}

	angle := args.String(0, viewport.AngleDefault)
	var subject *scene.Node
	if !strings.EqualFold(angle, viewport.AngleOriginal) {
		if subject = env.subject("Camera", args.String(1, "")); subject == nil {
			return viewport.CameraState{}, false
		}
	}
	shot, ok := env.Viewport.Shot(angle, subject)
	if !ok {
		env.warn("Camera", "unknown angle").Str("angle", angle).Msg("camera angle not found")
	}
	return shot, ok
}

// Camera(angle, [subject], [duration])
func cameraInline(env *Env, args Args) Result {
	if args.Seconds(2) > 0 {
		return Defer()
	}
	if shot, ok := cameraShot(env, args); ok {
		shot.Apply(env.Viewport.Camera())
	}
	return Handled(0)
}

// Animation(clip, [subject], [clip2, ...])
func animationInline(env *Env, args Args) Result {
	if len(args) > 2 {
		return Defer()
	}
	animator := animatorOf(env, "Animation", args.String(1, ""))
	if animator == nil {
		return Handled(0)
	}
	clip := args.String(0, "")
	length, ok := animator.ClipLength(clip)
	if !ok {
		env.warn("Animation", "unknown clip").Str("clip", clip).Msg("animation not found")
	}
	animator.CrossFade(clip)
	return Handled(length)
}

func animatorOf(env *Env, command, token string) *scene.Animator {
	subject := env.subject(command, token)
	if subject == nil {
		return nil
	}
	if subject.Animator == nil {
		env.warn(command, "no animator").Str("subject", subject.Name).Msg("subject has no animator")
		return nil
	}
	return subject.Animator
}

// AnimatorPlay(state, [subject], [crossfade], [layer])
func animatorPlay(env *Env, args Args) Result {
	if animator := animatorOf(env, "AnimatorPlay", args.String(1, "")); animator != nil {
		animator.Play(args.String(0, ""), args.Int(3, 0))
	}
	return Handled(0)
}

// AnimatorBool(param, [true|false], [subject])
func animatorBool(env *Env, args Args) Result {
	if animator := animatorOf(env, "AnimatorBool", args.String(2, "")); animator != nil {
		animator.SetBool(args.String(0, ""), args.Bool(1, true))
	}
	return Handled(0)
}

// AnimatorInt(param, value, [subject])
func animatorInt(env *Env, args Args) Result {
	if animator := animatorOf(env, "AnimatorInt", args.String(2, "")); animator != nil {
		animator.SetInt(args.String(0, ""), args.Int(1, 1))
	}
	return Handled(0)
}

// AnimatorTrigger(param, [subject])
func animatorTrigger(env *Env, args Args) Result {
	if animator := animatorOf(env, "AnimatorTrigger", args.String(1, "")); animator != nil {
		animator.SetTrigger(args.String(0, ""))
	}
	return Handled(0)
}

// AnimatorFloat(param, value, [subject], [duration])
func animatorFloatInline(env *Env, args Args) Result {
	if args.Seconds(3) > 0 {
		return Defer()
	}
	if animator := animatorOf(env, "AnimatorFloat", args.String(2, "")); animator != nil {
		animator.SetFloat(args.String(0, ""), args.Float(1, 1))
	}
	return Handled(0)
}

// AnimatorLayer(layer, [weight], [subject], [duration])
func animatorLayerInline(env *Env, args Args) Result {
	if args.Seconds(3) > 0 {
		return Defer()
	}
	if animator := animatorOf(env, "AnimatorLayer", args.String(2, "")); animator != nil {
		animator.SetLayerWeight(args.Int(0, 1), args.Float(1, 1))
	}
	return Handled(0)
}

// AnimatorController(controller, [subject])
func animatorController(env *Env, args Args) Result {
	animator := animatorOf(env, "AnimatorController", args.String(1, ""))
	if animator == nil {
		return Handled(0)
	}
	name := args.String(0, "")
	if env.Assets == nil {
		env.warn("AnimatorController", "no asset loader").Str("controller", name).Msg("cannot load controller")
		return Handled(0)
	}
	ctrl, err := env.Assets.AnimatorController(name)
	if err != nil {
		env.warn("AnimatorController", "missing asset").Err(err).Msg("cannot load controller")
		return Handled(0)
	}
	animator.Controller = ctrl.Name
	animator.SetClips(ctrl.Clips)
	return Handled(0)
}

// Audio(clip, [subject])
func audio(env *Env, args Args) Result {
	subject := env.subject("Audio", args.String(1, ""))
	if subject == nil {
		return Handled(0)
	}
	name := args.String(0, "")
	if env.Assets == nil {
		env.warn("Audio", "no asset loader").Str("clip", name).Msg("cannot load audio")
		return Handled(0)
	}
	clip, err := env.Assets.AudioClip(name)
	if err != nil {
		env.warn("Audio", "missing asset").Err(err).Msg("cannot load audio")
		return Handled(0)
	}
	if subject.Audio == nil {
		subject.Audio = &scene.AudioSource{}
	}
	subject.Audio.PlayOneShot(clip.Name)
	return Handled(clip.Length)
}

// MoveTo(target, [subject], [duration])
func moveToInline(env *Env, args Args) Result {
	if args.Seconds(2) > 0 {
		return Defer()
	}
	target := env.subject("MoveTo", args.String(0, ""))
	subject := env.subject("MoveTo", args.String(1, ""))
	if target != nil && subject != nil {
		subject.Transform = target.Transform
	}
	return Handled(0)
}

// LookAt([target], [subject], [duration], [allAxes])
func lookAtInline(env *Env, args Args) Result {
	if args.Seconds(2) > 0 {
		return Defer()
	}
	target := env.subject("LookAt", args.String(0, scene.Listener))
	subject := env.subject("LookAt", args.String(1, ""))
	if target != nil && subject != nil {
		subject.Transform.Rotation = scene.LookRotation(subject.Transform.Position, target.Transform.Position, !args.Bool(3, false))
	}
	return Handled(0)
}

// SendMessage(method, [arg], [subject|everyone])
func sendMessage(env *Env, args Args) Result {
	method := args.String(0, "")
	arg := args.String(1, "")
	token := args.String(2, "")

	if strings.EqualFold(token, "everyone") && env.Scene != nil {
		for _, n := range env.Scene.Nodes() {
			n.Receive(method, arg)
		}
		return Handled(0)
	}

	subject := env.subject("SendMessage", token)
	if subject != nil && !subject.Receive(method, arg) {
		env.Logger.Debug().Str("subject", subject.Name).Str("method", method).Msg("no receiver for message")
	}
	return Handled(0)
}

// SetActive(subject, [true|false|flip])
func setActive(env *Env, args Args) Result {
	if subject := env.subject("SetActive", args.String(0, "")); subject != nil {
		subject.Active = args.Toggle(1, subject.Active)
	}
	return Handled(0)
}

// SetEnabled(component, [true|false|flip], [subject])
func setEnabled(env *Env, args Args) Result {
	component := args.String(0, "")
	if subject := env.subject("SetEnabled", args.String(2, "")); subject != nil {
		subject.SetComponentEnabled(component, args.Toggle(1, subject.ComponentEnabled(component)))
	}
	return Handled(0)
}

// SetPortrait(subject, texture|default)
func setPortrait(env *Env, args Args) Result {
	subject := env.subject("SetPortrait", args.String(0, ""))
	if subject == nil {
		return Handled(0)
	}
	name := args.String(1, "default")
	if strings.EqualFold(name, "default") {
		subject.Portrait = ""
		return Handled(0)
	}
	if env.Assets == nil {
		env.warn("SetPortrait", "no asset loader").Str("texture", name).Msg("cannot load portrait")
		return Handled(0)
	}
	tex, err := env.Assets.Texture(name)
	if err != nil {
		env.warn("SetPortrait", "missing asset").Err(err).Msg("cannot load portrait")
		return Handled(0)
	}
	subject.Portrait = tex.Name
	return Handled(0)
}

// DefaultAlertDuration is used when ShowAlert has no duration.
const DefaultAlertDuration = 3 * time.Second

// ShowAlert([text], [duration]). Without text the Alert variable is shown.
func showAlert(env *Env, args Args) Result {
	text := args.String(0, "")
	if env.Variables != nil {
		if text == "" {
			text = env.Variables.GetString("Alert")
		}
		text = env.Variables.Expand(text)
	}
	if text == "" {
		return Handled(0)
	}
	d := args.Seconds(1)
	if d == 0 {
		d = DefaultAlertDuration
	}
	env.presenter().ShowAlert(text, d)
	return Handled(0)
}

// Lua(code). Commas in code survive the argument split.
func runLua(env *Env, args Args) Result {
	if env.Variables == nil {
		env.warn("Lua", "no script environment").Msg("cannot run lua")
		return Handled(0)
	}
	if err := env.Variables.Run(args.Join(0)); err != nil {
		env.warn("Lua", "script error").Err(err).Msg("lua failed")
	}
	return Handled(0)
}

// SetVariable(name, value)
func setVariable(env *Env, args Args) Result {
	name := args.String(0, "")
	if env.Variables == nil || name == "" {
		env.warn("SetVariable", "no script environment or name").Str("name", name).Msg("cannot set variable")
		return Handled(0)
	}
	if err := env.Variables.SetLiteral(name, args.Join(1)); err != nil {
		env.warn("SetVariable", "invalid value").Err(err).Msg("cannot set variable")
	}
	return Handled(0)
}
