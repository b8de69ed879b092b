package sequencer

import (
	"fmt"

	"github.com/opencode-ai/sequencer/internal/sequence"
)

// CutsceneRequest asks the Director to play a library cutscene.
type CutsceneRequest struct {
	Name     string            `json:"cutscene"`
	Speaker  string            `json:"speaker,omitempty"`
	Listener string            `json:"listener,omitempty"`
	EntryTag string            `json:"entrytag,omitempty"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// PlayCutscene renders c with vars and plays it. Speaker and listener are
// looked up by name in the scene; a missing name leaves the role empty.
func (d *Director) PlayCutscene(c *sequence.Cutscene, req CutsceneRequest, opts PlayOptions) (*Handle, error) {
	if c == nil {
		return nil, fmt.Errorf("cutscene is required")
	}
	seq, err := sequence.RenderCutscene(c, req.Vars)
	if err != nil {
		return nil, err
	}

	if opts.Name == "" {
		opts.Name = c.Name
	}
	if opts.EntryTag == "" {
		opts.EntryTag = req.EntryTag
	}

	speaker := d.scene.Find(req.Speaker)
	listener := d.scene.Find(req.Listener)
	if req.Speaker != "" && speaker == nil {
		d.logger.Warn().Str("speaker", req.Speaker).Msg("speaker not found in scene")
	}
	if req.Listener != "" && listener == nil {
		d.logger.Warn().Str("listener", req.Listener).Msg("listener not found in scene")
	}

	return d.PlaySequence(seq, speaker, listener, opts)
}
