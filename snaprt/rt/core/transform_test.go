package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestTransform_InverseByParts(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl64.Vec3{1, -2, 3}
	tr.Rotation = mgl64.QuatRotate(mgl64.DegToRad(40), mgl64.Vec3{1, 1, 0}.Normalize())
	tr.Scale = mgl64.Vec3{2, 0.5, 3}

	m := tr.ObjectToWorld().Mul4(tr.WorldToObject())
	assert.True(t, m.ApproxEqualThreshold(mgl64.Ident4(), 1e-12))

	p := TransformPoint(tr.ObjectToWorld(), mgl64.Vec3{0, 0, 0})
	assert.True(t, p.ApproxEqualThreshold(tr.Position, 1e-12))
}

func TestTranslation(t *testing.T) {
	m := Translation(4, 5, 6).ObjectToWorld()
	p := TransformPoint(m, mgl64.Vec3{1, 1, 1})
	assert.Equal(t, mgl64.Vec3{5, 6, 7}, p)
}
