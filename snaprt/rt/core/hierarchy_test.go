package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nestedScene builds root -> {group@(10,0,0) -> {box@(0,5,0), box@(0,-5,0)}, group@(-10,0,0) rotated, box@(0,0,3)}.
func nestedScene() (root, group, box *ComponentDefinition) {
	root = NewDefinition("root")
	group = NewDefinition("group")
	box = NewBox("box", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

	group.AddInstance(box, Translation(0, 5, 0).ObjectToWorld())
	group.AddInstance(box, Translation(0, -5, 0).ObjectToWorld())

	root.AddInstance(group, Translation(10, 0, 0).ObjectToWorld())
	rot := NewTransform()
	rot.Position = mgl64.Vec3{-10, 0, 0}
	rot.Rotation = mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 0, 1})
	root.AddInstance(group, rot.ObjectToWorld())
	root.AddInstance(box, Translation(0, 0, 3).ObjectToWorld())
	return root, group, box
}

func TestRegistry_FlattenOrderAndIds(t *testing.T) {
	root, group, box := nestedScene()
	reg := NewRegistry(root)
	frame := reg.Frame()

	require.Len(t, frame.Instances, 1+2+4+1)

	rootIdx, ok := frame.DefinitionIndex(root)
	require.True(t, ok)
	groupIdx, _ := frame.DefinitionIndex(group)
	boxIdx, _ := frame.DefinitionIndex(box)

	assert.Equal(t, 1, frame.InstanceCount(rootIdx))
	assert.Equal(t, 2, frame.InstanceCount(groupIdx))
	assert.Equal(t, 5, frame.InstanceCount(boxIdx))

	// Depth-first: the first group's boxes come before the second group's.
	first, ok := frame.Lookup(boxIdx, 0)
	require.True(t, ok)
	assert.True(t, frame.Instances[first].World.Col(3).Vec3().ApproxEqual(mgl64.Vec3{10, 5, 0}))

	// The loose box under the root is visited last.
	last, ok := frame.Lookup(boxIdx, 4)
	require.True(t, ok)
	assert.True(t, frame.Instances[last].World.Col(3).Vec3().ApproxEqual(mgl64.Vec3{0, 0, 3}))

	for _, inst := range frame.Instances {
		assert.True(t, inst.World.Mul4(inst.WorldInv).ApproxEqualThreshold(mgl64.Ident4(), 1e-9))
		assert.True(t, inst.Enabled)
	}
}

func TestRegistry_InstancePathMatchesFlatten(t *testing.T) {
	root, _, box := nestedScene()
	reg := NewRegistry(root)
	frame := reg.Frame()
	boxIdx, _ := frame.DefinitionIndex(box)

	for id := 0; id < frame.InstanceCount(boxIdx); id++ {
		fi, ok := frame.Lookup(boxIdx, id)
		require.True(t, ok)

		path, err := reg.InstancePath(box, id, frame.Epoch)
		require.NoError(t, err)
		assert.Same(t, root, path[0].Definition)
		assert.Same(t, box, path.Leaf().Definition)
		assert.True(t, path.Transform().ApproxEqualThreshold(frame.Instances[fi].World, 1e-9),
			"instance %d: path transform %v, world %v", id, path.Transform(), frame.Instances[fi].World)
	}
}

func TestRegistry_StaleEpoch(t *testing.T) {
	root, _, box := nestedScene()
	reg := NewRegistry(root)
	old := reg.Frame().Epoch

	reg.Invalidate()
	_, err := reg.InstancePath(box, 0, old)
	assert.ErrorIs(t, err, ErrStaleFrame)

	fresh := reg.Frame()
	assert.Greater(t, fresh.Epoch, old)
	_, err = reg.InstancePath(box, 0, old)
	assert.ErrorIs(t, err, ErrStaleFrame)

	_, err = reg.InstancePath(box, 0, fresh.Epoch)
	assert.NoError(t, err)

	_, err = reg.InstancePath(box, 99, fresh.Epoch)
	assert.ErrorIs(t, err, ErrUnknownInstance)
}

func TestRegistry_CycleFailsFast(t *testing.T) {
	a := NewDefinition("a")
	b := NewDefinition("b")
	a.AddInstance(b, mgl64.Ident4())
	b.AddInstance(a, mgl64.Ident4())

	reg := NewRegistry(a)
	assert.Panics(t, func() { reg.Frame() })
}

func TestRegistry_EnterDisablesSiblings(t *testing.T) {
	root := NewDefinition("root")
	group := NewDefinition("group")
	box := NewBox("box", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	inner := group.AddInstance(box, mgl64.Ident4())
	g1 := root.AddInstance(group, Translation(5, 0, 0).ObjectToWorld())
	root.AddInstance(group, Translation(-5, 0, 0).ObjectToWorld())

	reg := NewRegistry(root)
	reg.Enter(g1)
	frame := reg.Frame()

	var enabled []int
	for i, inst := range frame.Instances {
		if inst.Enabled {
			enabled = append(enabled, i)
		}
	}
	// g1 and its box only; the root and the other group stay in the frame.
	require.Len(t, frame.Instances, 5)
	assert.Equal(t, []int{1, 2}, enabled)

	reg.Enter(g1, inner)
	frame = reg.Frame()
	assert.False(t, frame.Instances[1].Enabled)
	assert.True(t, frame.Instances[2].Enabled)
}

func TestRegistry_HiddenSubtreeSkipped(t *testing.T) {
	root, group, box := nestedScene()
	root.Children[0].Hidden = true

	reg := NewRegistry(root)
	frame := reg.Frame()
	groupIdx, _ := frame.DefinitionIndex(group)
	boxIdx, _ := frame.DefinitionIndex(box)
	assert.Equal(t, 1, frame.InstanceCount(groupIdx))
	assert.Equal(t, 3, frame.InstanceCount(boxIdx))

	path, err := reg.InstancePath(box, 0, frame.Epoch)
	require.NoError(t, err)
	fi, _ := frame.Lookup(boxIdx, 0)
	assert.True(t, path.Transform().ApproxEqualThreshold(frame.Instances[fi].World, 1e-9))
}

func TestRegistry_CurrentDoesNotRebuild(t *testing.T) {
	root, _, _ := nestedScene()
	reg := NewRegistry(root)
	assert.Nil(t, reg.Current())

	f := reg.Frame()
	assert.Same(t, f, reg.Current())
	assert.Same(t, f, reg.Frame())

	reg.Invalidate()
	assert.Nil(t, reg.Current())
}

func TestRegistry_EpochAdvancesOnlyOnRebuild(t *testing.T) {
	root, _, box := nestedScene()
	reg := NewRegistry(root)

	f := reg.Frame()
	assert.Equal(t, f.Epoch, reg.Frame().Epoch)
	assert.Equal(t, f.Epoch, reg.Current().Epoch)

	// Ids handed out by the cached frame stay resolvable until a change.
	for i := 0; i < 3; i++ {
		_, err := reg.InstancePath(box, 0, reg.Frame().Epoch)
		require.NoError(t, err)
	}

	reg.Invalidate()
	next := reg.Frame()
	assert.Equal(t, f.Epoch+1, next.Epoch)
	_, err := reg.InstancePath(box, 0, next.Epoch)
	assert.NoError(t, err)
}
