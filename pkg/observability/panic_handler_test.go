package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "worker")
		panic("exploded")
	}()

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "PANIC recovered", entry["msg"])
	assert.Equal(t, "exploded", entry["panic"])
	assert.Equal(t, "worker", entry["context"])
	assert.NotEmpty(t, entry["stack"])
}

func TestRecoverPanicWithCallback(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	called := false
	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
	}()
	assert.False(t, called, "callback only runs after a panic")

	func() {
		defer RecoverPanicWithCallback(logger, "worker", func() { called = true })
		panic("again")
	}()
	assert.True(t, called)
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))
	assert.EqualError(t, MustRecover("bad"), "panic: bad")

	run := func() (err error) {
		defer func() { err = MustRecover(recover()) }()
		var m map[string]int
		m["x"] = 1
		return nil
	}
	assert.Error(t, run())
}
