package router

import (
	"sort"
	"strings"
	"sync"

	"github.com/ktt-ol/sensorlux/internal/sensorlux"
)

// New returns a new Router for fast record path look ups.
func New() *Router {
	return &Router{}
}

// Router maps record paths (<location>/<field>) to sinks.
type Router struct {
	routes []route
	sorted bool
	mu     sync.RWMutex
}

// Add adds a new pattern to the router and assigns it to a sink.
// The pattern can end with # to match any sub-path.
// The + wildcard is not supported.
func (r *Router) Add(pattern string, s sensorlux.Sink) {
	r.mu.Lock()
	r.sorted = false
	r.routes = append(r.routes, route{path: strings.Split(pattern, "/"), sink: s})
	r.mu.Unlock()
}

// Find returns all sinks matching path, each sink at most once.
func (r *Router) Find(path string) []sensorlux.Sink {
	p := strings.Split(path, "/")
	r.mu.RLock()
	defer r.mu.RUnlock()

	for !r.sorted {
		// need to sort r.routes, upgrade read lock to lock
		// uses for !r.sorted to prevent race condition
		r.mu.RUnlock()
		r.mu.Lock()
		sort.Stable(byPath(r.routes))
		r.sorted = true
		r.mu.Unlock()
		r.mu.RLock()
	}

	result := r.find(p, nil)
	wildcard := make([]string, len(p)+1)
	copy(wildcard, p)
	for i := len(p); i >= 0; i-- {
		wildcard[i] = "#"
		wildcard = wildcard[:i+1]
		result = r.find(wildcard, result)
	}
	return result
}

func (r *Router) find(path []string, result []sensorlux.Sink) []sensorlux.Sink {
	i := sort.Search(len(r.routes), func(i int) bool {
		return compare(r.routes[i].path, path) >= 0
	})
	for j := i; j < len(r.routes) && identical(r.routes[j].path, path); j++ {
		result = appendUnique(result, r.routes[j].sink)
	}
	return result
}

func appendUnique(sinks []sensorlux.Sink, s sensorlux.Sink) []sensorlux.Sink {
	for _, have := range sinks {
		if have == s {
			return sinks
		}
	}
	return append(sinks, s)
}

// compare orders paths element wise, shorter paths first on equal prefix.
func compare(a, b []string) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

// identical checks whether both paths are identical
func identical(a, b []string) bool {
	return compare(a, b) == 0
}

type route struct {
	path []string
	sink sensorlux.Sink
}

type byPath []route

func (p byPath) Len() int           { return len(p) }
func (p byPath) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p byPath) Less(i, j int) bool { return compare(p[i].path, p[j].path) < 0 }
