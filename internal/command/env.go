// Package command implements the sequencer's command registry: built-in
// inline handlers, built-in async commands and dispatch.
package command

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/assets"
	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/script"
	"github.com/opencode-ai/sequencer/internal/viewport"
)

// Presenter displays screen-space effects for commands.
type Presenter interface {
	ShowAlert(text string, duration time.Duration)
	SetFade(alpha float64)
}

// LogPresenter writes presentation effects to a logger.
type LogPresenter struct {
	Logger zerolog.Logger

	ownsCamera bool
}

// ShowAlert implements Presenter.
func (p LogPresenter) ShowAlert(text string, duration time.Duration) {
	p.Logger.Info().Str("text", text).Dur("duration", duration).Msg("alert")
}

// SetFade implements Presenter.
func (p LogPresenter) SetFade(alpha float64) {
	p.Logger.Debug().Float64("alpha", alpha).Msg("fade")
}

// Env is everything a command can touch while a sequence plays. Any
// collaborator may be nil; commands that need a missing one log a warning
// and do nothing.
type Env struct {
	Scene     *scene.Scene
	Assets    assets.Loader
	Presenter Presenter
	Variables *script.Environment
	Viewport  *viewport.Controller
	Bus       *bus.Bus

	Speaker  *scene.Node
	Listener *scene.Node

	Logger zerolog.Logger
}

// NewEnv returns an env with a component logger and a log presenter.
func NewEnv(s *scene.Scene, speaker, listener *scene.Node) *Env {
	logger := logging.Component("command")
	return &Env{
		Scene:     s,
		Presenter: LogPresenter{Logger: logger},
		Speaker:   speaker,
		Listener:  listener,
		Logger:    logger,
	}
}

// TakeCamera takes viewport control for this sequence. It reports false when
// there is no viewport or another sequence holds control.
func (e *Env) TakeCamera() bool {
	if e.Viewport == nil {
		return false
	}
	if !e.ownsCamera {
		e.ownsCamera = e.Viewport.Take()
	}
	return e.ownsCamera
}

// ReleaseCamera restores the camera when this sequence holds control.
func (e *Env) ReleaseCamera() bool {
	if !e.ownsCamera {
		return false
	}
	e.ownsCamera = false
	return e.Viewport.Release()
}

// OwnsCamera reports whether this sequence holds viewport control.
func (e *Env) OwnsCamera() bool { return e.ownsCamera }

// Resolve maps a subject token to a node using the bound participants.
func (e *Env) Resolve(token string) *scene.Node {
	return e.Scene.Resolve(token, e.Speaker, e.Listener)
}

// subject resolves token and warns when it is missing.
func (e *Env) subject(command, token string) *scene.Node {
	n := e.Resolve(token)
	if n == nil {
		e.Logger.Warn().Str("command", command).Str("subject", token).Msg("subject not found")
	}
	return n
}

func (e *Env) warn(command, msg string) *zerolog.Event {
	return e.Logger.Warn().Str("command", command).Str("reason", msg)
}

func (e *Env) presenter() Presenter {
	if e.Presenter == nil {
		return LogPresenter{Logger: e.Logger}
	}
	return e.Presenter
}
