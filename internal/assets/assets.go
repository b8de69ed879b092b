// Package assets resolves named resources (audio clips, textures, animator
// controllers) for sequencer commands.
package assets

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an asset name has no entry.
var ErrNotFound = errors.New("asset not found")

// Loader is the asset-resolution function commands call. A failed lookup is
// a warning for the caller, never fatal.
type Loader interface {
	AudioClip(name string) (Clip, error)
	Texture(name string) (Texture, error)
	AnimatorController(name string) (Controller, error)
}

// Clip is an audio clip.
type Clip struct {
	Name   string        `yaml:"name"`
	Length time.Duration `yaml:"length"`
}

// Texture is an image resource such as a portrait.
type Texture struct {
	Name string `yaml:"name"`
	Path string `yaml:"path,omitempty"`
}

// Controller is an animator controller and the clip lengths it provides.
type Controller struct {
	Name  string                   `yaml:"name"`
	Clips map[string]time.Duration `yaml:"clips"`
}

// manifest is the YAML layout of a catalog file.
type manifest struct {
	Audio       []Clip       `yaml:"audio"`
	Textures    []Texture    `yaml:"textures"`
	Controllers []Controller `yaml:"controllers"`
}

// Catalog is an in-memory Loader, usually populated from a YAML manifest.
type Catalog struct {
	mu          sync.RWMutex
	audio       map[string]Clip
	textures    map[string]Texture
	controllers map[string]Controller
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		audio:       make(map[string]Clip),
		textures:    make(map[string]Texture),
		controllers: make(map[string]Controller),
	}
}

// LoadCatalog reads a YAML manifest from disk.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("asset manifest path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset manifest %s: %w", path, err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse asset manifest %s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog decodes a YAML manifest.
func ParseCatalog(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	c := NewCatalog()
	for i, clip := range m.Audio {
		if strings.TrimSpace(clip.Name) == "" {
			return nil, fmt.Errorf("audio entry %d: name is required", i+1)
		}
		if clip.Length < 0 {
			return nil, fmt.Errorf("audio %q: length must not be negative", clip.Name)
		}
		c.AddClip(clip)
	}
	for i, tex := range m.Textures {
		if strings.TrimSpace(tex.Name) == "" {
			return nil, fmt.Errorf("texture entry %d: name is required", i+1)
		}
		c.AddTexture(tex)
	}
	for i, ctrl := range m.Controllers {
		if strings.TrimSpace(ctrl.Name) == "" {
			return nil, fmt.Errorf("controller entry %d: name is required", i+1)
		}
		c.AddController(ctrl)
	}
	return c, nil
}

// AddClip registers an audio clip.
func (c *Catalog) AddClip(clip Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip.Name = strings.TrimSpace(clip.Name)
	c.audio[clip.Name] = clip
}

// AddTexture registers a texture.
func (c *Catalog) AddTexture(tex Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tex.Name = strings.TrimSpace(tex.Name)
	c.textures[tex.Name] = tex
}

// AddController registers an animator controller.
func (c *Catalog) AddController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctrl.Name = strings.TrimSpace(ctrl.Name)
	if ctrl.Clips == nil {
		ctrl.Clips = map[string]time.Duration{}
	}
	c.controllers[ctrl.Name] = ctrl
}

// AudioClip implements Loader.
func (c *Catalog) AudioClip(name string) (Clip, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clip, ok := c.audio[name]
	if !ok {
		return Clip{}, fmt.Errorf("audio clip %q: %w", name, ErrNotFound)
	}
	return clip, nil
}

// Texture implements Loader.
func (c *Catalog) Texture(name string) (Texture, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tex, ok := c.textures[name]
	if !ok {
		return Texture{}, fmt.Errorf("texture %q: %w", name, ErrNotFound)
	}
	return tex, nil
}

// AnimatorController implements Loader.
func (c *Catalog) AnimatorController(name string) (Controller, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ctrl, ok := c.controllers[name]
	if !ok {
		return Controller{}, fmt.Errorf("animator controller %q: %w", name, ErrNotFound)
	}
	return ctrl, nil
}

// Names lists every asset name by kind, sorted.
func (c *Catalog) Names() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string][]string{
		"audio":       keys(c.audio),
		"textures":    keys(c.textures),
		"controllers": keys(c.controllers),
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
