package snap

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewDefaultLogger("snap", false)
	l.out = log.New(&out, "", 0)
	l.err = log.New(&errOut, "", 0)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.SetDebug(true)
	l.Debugf("shown %d", 2)
	l.Infof("info")
	l.Warnf("careful")
	assert.Equal(t, "[snap] DEBUG: shown 2\n[snap] INFO: info\n", out.String())
	assert.Equal(t, "[snap] WARN: careful\n", errOut.String())
}

func TestOrNop(t *testing.T) {
	l := orNop(nil)
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	l.Errorf("dropped")

	d := NewDefaultLogger("", true)
	assert.Same(t, d, orNop(d))
	assert.Equal(t, "INFO: x", d.line("INFO", "x"))
}
