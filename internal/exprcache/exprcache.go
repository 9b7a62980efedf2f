// Package exprcache compiles expr-lang expressions once and shares the
// compiled programs between goroutines through a bounded LRU cache.
//
// Target filters on action templates and expression curves on utility
// evaluators are both compiled here. Compiled programs are immutable and safe
// to run concurrently, so one cache serves every planner worker.
package exprcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultSize is the default maximum number of compiled programs retained.
const DefaultSize = 1000

// Kind selects the result type an expression is compiled for. The same
// source compiled for different kinds is cached separately.
type Kind int

const (
	// Bool expressions are predicates (target filters).
	Bool Kind = iota
	// Float expressions produce a number (utility curves).
	Float
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// Cache is a thread-safe LRU of compiled programs.
type Cache struct {
	mu        sync.Mutex
	items     map[cacheKey]*list.Element
	lru       *list.List
	maxSize   int
	hitCount  int64
	missCount int64
}

type cacheKey struct {
	kind   Kind
	source string
}

type entry struct {
	key     cacheKey
	program *vm.Program
}

// New creates a cache holding at most maxSize programs. Values below one use
// DefaultSize.
func New(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = DefaultSize
	}
	return &Cache{
		items:   make(map[cacheKey]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

var shared = New(DefaultSize)

// Shared returns the process-wide cache.
func Shared() *Cache { return shared }

// Compile returns the compiled program for source, compiling it against env
// on a miss. env is a zero value of the environment type the program will
// later be run with.
func (c *Cache) Compile(kind Kind, source string, env any) (*vm.Program, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}
	key := cacheKey{kind: kind, source: source}
	if p, ok := c.get(key); ok {
		return p, nil
	}

	opts := []expr.Option{expr.Env(env), expr.AllowUndefinedVariables()}
	switch kind {
	case Bool:
		opts = append(opts, expr.AsBool())
	case Float:
		opts = append(opts, expr.AsFloat64())
	default:
		return nil, fmt.Errorf("unknown expression kind %d", kind)
	}

	program, err := expr.Compile(source, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %s expression %q: %w", kind, source, err)
	}
	c.put(key, program)
	return program, nil
}

// EvalBool compiles (or fetches) source and runs it as a predicate.
func (c *Cache) EvalBool(source string, env any) (bool, error) {
	program, err := c.Compile(Bool, source, env)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", source, out)
	}
	return b, nil
}

// EvalFloat compiles (or fetches) source and runs it as a number.
func (c *Cache) EvalFloat(source string, env any) (float64, error) {
	program, err := c.Compile(Float, source, env)
	if err != nil {
		return 0, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", source, err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q returned %T, want float64", source, out)
	}
	return f, nil
}

// get moves a hit to the front, so it takes the write lock.
func (c *Cache) get(key cacheKey) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.missCount++
		return nil, false
	}
	c.hitCount++
	c.lru.MoveToFront(elem)
	return elem.Value.(*entry).program, true
}

func (c *Cache) put(key cacheKey, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry).program = program
		return
	}
	c.items[key] = c.lru.PushFront(&entry{key: key, program: program})
	c.evict()
}

func (c *Cache) evict() {
	for c.lru.Len() > c.maxSize {
		elem := c.lru.Back()
		delete(c.items, elem.Value.(*entry).key)
		c.lru.Remove(elem)
	}
}

// Resize changes the capacity, evicting least recently used programs if the
// cache is now over capacity.
func (c *Cache) Resize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.evict()
}

// Clear drops every cached program and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[cacheKey]*list.Element)
	c.lru.Init()
	c.hitCount, c.missCount = 0, 0
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() (size int, hits, misses int64, ratio float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hitCount + c.missCount
	if total > 0 {
		ratio = float64(c.hitCount) / float64(total)
	}
	return c.lru.Len(), c.hitCount, c.missCount, ratio
}

// String describes the cache stats.
func (c *Cache) String() string {
	size, hits, misses, ratio := c.Stats()
	return fmt.Sprintf("exprcache{size=%d, hits=%d, misses=%d, hit_ratio=%.2f%%}",
		size, hits, misses, ratio*100)
}
