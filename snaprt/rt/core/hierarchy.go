package core

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrStaleFrame      = errors.New("stale frame epoch")
	ErrUnknownInstance = errors.New("unknown instance")
)

// Epoch identifies one flattening of the hierarchy. Instance ids are only
// meaningful together with the epoch of the frame that assigned them.
type Epoch uint64

// Instance is one flattened placement of a definition.
type Instance struct {
	Definition *ComponentDefinition
	DefIndex   int
	ID         int
	World      mgl64.Mat4
	WorldInv   mgl64.Mat4
	// Enabled is false for instances outside the entered editing context.
	Enabled bool
	Depth   int
}

// Frame is the flattened hierarchy for one epoch. It is read-only once built.
type Frame struct {
	Epoch       Epoch
	Instances   []Instance
	Definitions []*ComponentDefinition

	defIndex map[*ComponentDefinition]int
	byDef    [][]int
}

func (f *Frame) DefinitionIndex(d *ComponentDefinition) (int, bool) {
	if f == nil {
		return 0, false
	}
	i, ok := f.defIndex[d]
	return i, ok
}

// Lookup returns the index into Instances of instance id of the definition at defIndex.
func (f *Frame) Lookup(defIndex, id int) (int, bool) {
	if f == nil || defIndex < 0 || defIndex >= len(f.byDef) {
		return 0, false
	}
	ids := f.byDef[defIndex]
	if id < 0 || id >= len(ids) {
		return 0, false
	}
	return ids[id], true
}

// InstanceCount returns how many instances of the definition at defIndex the frame holds.
func (f *Frame) InstanceCount(defIndex int) int {
	if f == nil || defIndex < 0 || defIndex >= len(f.byDef) {
		return 0
	}
	return len(f.byDef[defIndex])
}

// walkNode is one worklist entry: a placement together with the transform it
// inherited. parent links form the chain back to the root.
type walkNode struct {
	inst   *ComponentInstance
	def    *ComponentDefinition
	parent *walkNode
	world  mgl64.Mat4
	depth  int
	// matched counts how many entries of the entered context prefix this
	// chain; -1 once the chain diverged.
	matched int
}

// walk visits every visible placement below root in depth-first pre-order,
// root first. It is the single traversal shared by flattening and instance
// path reconstruction so both agree on instance ids. visit returns false to stop.
func walk(root *ComponentDefinition, entered []*ComponentInstance, visit func(n *walkNode) bool) {
	if root == nil {
		return
	}
	stack := []*walkNode{{def: root, world: mgl64.Ident4()}}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(n) {
			return
		}

		children := n.def.Children
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			if child == nil || child.Hidden || child.Definition == nil {
				continue
			}
			for p := n; p != nil; p = p.parent {
				if p.def == child.Definition {
					panic(fmt.Sprintf("component hierarchy cycle: %q contains itself", child.Definition.Name))
				}
			}
			matched := -1
			switch {
			case n.matched == len(entered):
				matched = n.matched
			case n.matched >= 0 && entered[n.matched] == child:
				matched = n.matched + 1
			}
			stack = append(stack, &walkNode{
				inst:    child,
				def:     child.Definition,
				parent:  n,
				world:   n.world.Mul4(child.Local),
				depth:   n.depth + 1,
				matched: matched,
			})
		}
	}
}

// Registry caches the flattened hierarchy below a root definition.
type Registry struct {
	root    *ComponentDefinition
	entered []*ComponentInstance
	epoch   Epoch
	frame   *Frame
	dirty   bool
}

func NewRegistry(root *ComponentDefinition) *Registry {
	return &Registry{root: root, dirty: true}
}

func (r *Registry) Root() *ComponentDefinition {
	return r.root
}

// Invalidate marks the cache stale after any transform, parent link or
// visibility change.
func (r *Registry) Invalidate() {
	r.dirty = true
}

func (r *Registry) Dirty() bool {
	return r.dirty || r.frame == nil
}

// Enter sets the editing context to the instance chain path (root first).
// An empty path leaves everything enabled.
func (r *Registry) Enter(path ...*ComponentInstance) {
	r.entered = append([]*ComponentInstance(nil), path...)
	r.dirty = true
}

// Current returns the last flattened frame without rebuilding, or nil.
func (r *Registry) Current() *Frame {
	if r.dirty {
		return nil
	}
	return r.frame
}

// Frame returns the flattened frame, rebuilding it when stale.
func (r *Registry) Frame() *Frame {
	if r.dirty || r.frame == nil {
		r.frame = r.flatten()
		r.dirty = false
	}
	return r.frame
}

// flatten walks the hierarchy and returns a new frame with a fresh epoch.
func (r *Registry) flatten() *Frame {
	r.epoch++
	f := &Frame{
		Epoch:    r.epoch,
		defIndex: make(map[*ComponentDefinition]int),
	}
	walk(r.root, r.entered, func(n *walkNode) bool {
		di, ok := f.defIndex[n.def]
		if !ok {
			di = len(f.Definitions)
			f.defIndex[n.def] = di
			f.Definitions = append(f.Definitions, n.def)
			f.byDef = append(f.byDef, nil)
		}
		f.Instances = append(f.Instances, Instance{
			Definition: n.def,
			DefIndex:   di,
			ID:         len(f.byDef[di]),
			World:      n.world,
			WorldInv:   n.world.Inv(),
			Enabled:    n.matched == len(r.entered),
			Depth:      n.depth,
		})
		f.byDef[di] = append(f.byDef[di], len(f.Instances)-1)
		return true
	})
	return f
}

// PathNode is one step of an instance path. The root node has no Instance
// and an identity Local.
type PathNode struct {
	Definition *ComponentDefinition
	Instance   *ComponentInstance
	Local      mgl64.Mat4
}

// InstancePath is the chain of placements from the root to one instance.
type InstancePath []PathNode

// Transform composes the local transforms from root to leaf.
func (p InstancePath) Transform() mgl64.Mat4 {
	m := mgl64.Ident4()
	for _, n := range p {
		m = m.Mul4(n.Local)
	}
	return m
}

func (p InstancePath) Leaf() PathNode {
	if len(p) == 0 {
		return PathNode{}
	}
	return p[len(p)-1]
}

// Instances returns the placements of the path without the root, the form
// accepted by Enter.
func (p InstancePath) Instances() []*ComponentInstance {
	out := make([]*ComponentInstance, 0, len(p))
	for _, n := range p {
		if n.Instance != nil {
			out = append(out, n.Instance)
		}
	}
	return out
}

// InstancePath reconstructs the chain leading to instance id of def. epoch
// must be the epoch of the current frame.
func (r *Registry) InstancePath(def *ComponentDefinition, id int, epoch Epoch) (InstancePath, error) {
	if r.dirty || r.frame == nil || r.frame.Epoch != epoch {
		return nil, fmt.Errorf("instance %d of %q at epoch %d: %w", id, defName(def), epoch, ErrStaleFrame)
	}
	if id < 0 {
		return nil, fmt.Errorf("instance %d of %q: %w", id, defName(def), ErrUnknownInstance)
	}

	remaining := id
	var found *walkNode
	walk(r.root, r.entered, func(n *walkNode) bool {
		if n.def != def {
			return true
		}
		if remaining == 0 {
			found = n
			return false
		}
		remaining--
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("instance %d of %q: %w", id, defName(def), ErrUnknownInstance)
	}

	depth := found.depth + 1
	path := make(InstancePath, depth)
	for n := found; n != nil; n = n.parent {
		depth--
		node := PathNode{Definition: n.def, Instance: n.inst, Local: mgl64.Ident4()}
		if n.inst != nil {
			node.Local = n.inst.Local
		}
		path[depth] = node
	}
	return path, nil
}

func defName(d *ComponentDefinition) string {
	if d == nil {
		return "<nil>"
	}
	return d.Name
}
