package shaders

import (
	_ "embed"
)

// PickWGSL writes the face id and instance id of each triangle into two
// R32Uint targets.
//
//go:embed pick.wgsl
var PickWGSL string
