// Package execctx holds the per-run variable store threaded through a
// scenario's steps.
//
// A Context belongs to exactly one scenario run. Nothing in it is shared
// between runs: seed values are copied in, and the Context is dropped when
// the run ends. Access is guarded by a mutex because an abandoned step
// attempt may still be reading while the run moves on.
package execctx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Context is the execution context of one scenario run.
type Context struct {
	mu        sync.RWMutex
	vars      map[string]ldvalue.Value
	createdAt time.Time
}

// New creates an empty context stamped with createdAt.
func New(createdAt time.Time) *Context {
	return &Context{
		vars:      make(map[string]ldvalue.Value),
		createdAt: createdAt,
	}
}

// NewSeeded creates a context holding a copy of seed. Seed values are
// arbitrary Go values as produced by a YAML or JSON decoder.
func NewSeeded(createdAt time.Time, seed map[string]any) *Context {
	c := New(createdAt)
	for k, v := range seed {
		c.vars[k] = ldvalue.CopyArbitraryValue(v)
	}
	return c
}

// CreatedAt returns when the run's context was opened.
func (c *Context) CreatedAt() time.Time {
	return c.createdAt
}

// Set stores a variable, replacing any previous value.
func (c *Context) Set(name string, v ldvalue.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = v
}

// Clone returns an independent copy. Values are immutable, so only the map
// is copied.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := New(c.createdAt)
	for k, v := range c.vars {
		out.vars[k] = v
	}
	return out
}

// Get returns a top-level variable.
func (c *Context) Get(name string) (ldvalue.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[name]
	return v, ok
}

// Names returns the defined variable names in sorted order.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.vars))
	for k := range c.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of variables.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vars)
}

// Lookup resolves a dotted path such as "rfp.documents.0.id". The first
// segment names a variable; the rest are applied with Extract.
func (c *Context) Lookup(path string) (ldvalue.Value, bool) {
	head, rest, _ := strings.Cut(path, ".")
	v, ok := c.Get(head)
	if !ok {
		return ldvalue.Null(), false
	}
	if rest == "" {
		return v, true
	}
	return Extract(v, rest)
}

// Extract applies a dotted path to a JSON value. Numeric segments index
// arrays, "#" yields the length of an array, object or string. An empty
// path or "." returns the value itself.
func Extract(v ldvalue.Value, path string) (ldvalue.Value, bool) {
	if path == "" || path == "." {
		return v, true
	}
	for _, seg := range strings.Split(path, ".") {
		switch {
		case seg == "#":
			switch v.Type() {
			case ldvalue.ArrayType, ldvalue.ObjectType:
				v = ldvalue.Int(v.Count())
			case ldvalue.StringType:
				v = ldvalue.Int(len([]rune(v.StringValue())))
			default:
				return ldvalue.Null(), false
			}
		case v.Type() == ldvalue.ArrayType:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= v.Count() {
				return ldvalue.Null(), false
			}
			v = v.GetByIndex(i)
		case v.Type() == ldvalue.ObjectType:
			next, ok := lookupKey(v, seg)
			if !ok {
				return ldvalue.Null(), false
			}
			v = next
		default:
			return ldvalue.Null(), false
		}
	}
	return v, true
}

func lookupKey(obj ldvalue.Value, key string) (ldvalue.Value, bool) {
	for _, k := range obj.Keys() {
		if k == key {
			return obj.GetByKey(key), true
		}
	}
	return ldvalue.Null(), false
}

// UndefinedError reports a template or path that names a variable the run
// never set.
type UndefinedError struct {
	Path string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Path)
}
