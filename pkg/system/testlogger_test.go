package system

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// captureT satisfies zaptest.TestingT and keeps every logged line.
type captureT struct {
	lines  []string
	failed bool
}

func (c *captureT) Logf(format string, args ...any)   { c.lines = append(c.lines, fmt.Sprintf(format, args...)) }
func (c *captureT) Errorf(format string, args ...any) { c.Logf(format, args...); c.failed = true }
func (c *captureT) Fail()                             { c.failed = true }
func (c *captureT) Failed() bool                      { return c.failed }
func (c *captureT) Name() string                      { return "capture" }
func (c *captureT) FailNow()                          { c.failed = true }

func TestNewTestLoggerWritesThroughT(t *testing.T) {
	ct := &captureT{}
	log := NewTestLogger(ct)

	log.Debugw("Debug line", "key", "value")
	log.Errorw("Error line", "error", "boom")

	out := strings.Join(ct.lines, "\n")
	assert.Contains(t, out, "Debug line")
	assert.Contains(t, out, `"key": "value"`)
	assert.Contains(t, out, "Error line")
	assert.Contains(t, out, "testlogger_test.go", "caller is annotated")
	assert.NotContains(t, out, "testing.tRunner", "no stack trace below panic level")
	assert.False(t, ct.Failed())
}
