// Package scene models the named entities a sequence acts on and resolves
// symbolic participant names to them.
package scene

import (
	"strings"
	"sync"
)

// Participant names understood by Resolve.
const (
	Speaker  = "speaker"
	Listener = "listener"
)

// Scene holds nodes in insertion order.
type Scene struct {
	mu    sync.RWMutex
	nodes []*Node
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{}
}

// Add appends nodes to the scene and returns the first one for chaining.
func (s *Scene) Add(nodes ...*Node) *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, nodes...)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Remove drops a node from the scene.
func (s *Scene) Remove(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.nodes {
		if existing == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

// Find returns the first node with the given name, or nil.
func (s *Scene) Find(name string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Nodes returns a copy of the node list.
func (s *Scene) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Resolve maps a subject token to a node. "speaker" and "listener" (any case)
// return the bound participants, an empty token defaults to the speaker and
// any other token is looked up by name. Nil means unresolved; callers report
// it.
func (s *Scene) Resolve(token string, speaker, listener *Node) *Node {
	token = strings.TrimSpace(token)
	switch {
	case token == "":
		return speaker
	case strings.EqualFold(token, Speaker):
		return speaker
	case strings.EqualFold(token, Listener):
		return listener
	}
	if s == nil {
		return nil
	}
	return s.Find(token)
}
