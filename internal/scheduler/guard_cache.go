package scheduler

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// GuardCache is a thread-safe LRU of compiled expr-lang programs, used to
// evaluate XOR/OR-split guards and W1 general-query predicates without
// recompiling the same expression on every step. Modeled directly on the
// teacher's ConditionCache.
type GuardCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type guardEntry struct {
	key     string
	program *vm.Program
}

// NewGuardCache creates a cache bounded to capacity compiled programs.
func NewGuardCache(capacity int) *GuardCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &GuardCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a cached program for expression, promoting it to
// most-recently-used.
func (c *GuardCache) Get(expression string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[expression]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*guardEntry).program, true
}

// Put inserts a compiled program, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *GuardCache) Put(expression string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[expression]; ok {
		el.Value.(*guardEntry).program = program
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&guardEntry{key: expression, program: program})
	c.entries[expression] = el
	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *GuardCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.entries, el.Value.(*guardEntry).key)
}

// Len reports the number of cached programs.
func (c *GuardCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear empties the cache.
func (c *GuardCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// CompileAndCache compiles expression (as a boolean-returning expr-lang
// program over env) if it is not already cached, caching the result.
func (c *GuardCache) CompileAndCache(expression string, env map[string]any) (*vm.Program, error) {
	if p, ok := c.Get(expression); ok {
		return p, nil
	}
	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("scheduler: compile guard %q: %w", expression, err)
	}
	c.Put(expression, program)
	return program, nil
}

// Evaluator adapts GuardCache to pattern.GuardEvaluator.
type Evaluator struct {
	cache *GuardCache
}

// NewEvaluator creates a pattern.GuardEvaluator backed by cache.
func NewEvaluator(cache *GuardCache) *Evaluator {
	return &Evaluator{cache: cache}
}

// Eval compiles (or reuses) expression and runs it against vars.
func (e *Evaluator) Eval(expression string, vars map[string]any) (bool, error) {
	if expression == "" {
		return true, nil
	}
	program, err := e.cache.CompileAndCache(expression, vars)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("scheduler: run guard %q: %w", expression, err)
	}
	b, _ := out.(bool)
	return b, nil
}
