// Package script runs user-supplied Lua prompt transforms.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// TransformFileName is the script looked up in the config directory.
const TransformFileName = "transform.lua"

// transformGlobal is the function the script must define:
//
//	function transform(action_id, prompt, text) ... end
//
// returning the final user prompt as a string.
const transformGlobal = "transform"

// ErrClosed is returned when using a closed transformer.
var ErrClosed = errors.New("script: transformer closed")

// Transformer holds a sandboxed Lua state with a loaded transform
// script. The LState is not goroutine-safe; all calls serialize on
// the mutex.
type Transformer struct {
	mu     sync.Mutex
	L      *lua.LState
	path   string
	closed bool
}

// Load reads the transform script from dir. A missing script is not an
// error: it returns (nil, nil) and the caller submits prompts untouched.
func Load(dir string) (*Transformer, error) {
	path := filepath.Join(dir, TransformFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("script: stat %s: %w", path, err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	sandbox(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load %s: %w", path, err)
	}
	if L.GetGlobal(transformGlobal).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script: %s does not define a %s function", path, transformGlobal)
	}

	return &Transformer{L: L, path: path}, nil
}

// Path returns the loaded script's location.
func (t *Transformer) Path() string {
	return t.path
}

// Transform invokes the script's transform function and returns the
// final user prompt.
func (t *Transformer) Transform(actionID, prompt, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", ErrClosed
	}

	err := t.callWithRecovery(func() error {
		t.L.Push(t.L.GetGlobal(transformGlobal))
		t.L.Push(lua.LString(actionID))
		t.L.Push(lua.LString(prompt))
		t.L.Push(lua.LString(text))
		return t.L.PCall(3, 1, nil)
	})
	if err != nil {
		return "", fmt.Errorf("script: transform: %w", err)
	}

	ret := t.L.Get(-1)
	t.L.Pop(1)
	s, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("script: transform returned %s, want string", ret.Type())
	}
	return string(s), nil
}

// Close releases the Lua state.
func (t *Transformer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.L.Close()
}

func (t *Transformer) callWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("lua panic")
			}
		}
	}()
	return fn()
}

// openSafeLibraries opens base, table, string, and math. io, os, debug,
// and package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes loaders that could pull in code from outside the
// script file.
func sandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}
