package ecs

import (
	"sort"
	"strings"
	"sync"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
)

// System is the minimal contract every registered system satisfies. The
// richer lifecycle hooks (Init, Cleanup, Run, RunAll, Destroy) are optional
// interfaces probed by type assertion each time the world invokes them,
// keyed by query membership instead of a fixed phase enum. Only DrawMarker
// is probed at registration.
type System interface {
	Depth() int
}

// Initializer is probed on membership entry: an entity newly matching the
// system's query.
type Initializer interface {
	Init(w *World, eid Entity)
}

// Cleaner is probed on membership exit.
type Cleaner interface {
	Cleanup(w *World, eid Entity)
}

// Runner is invoked once per matching entity by the default RunAll.
type Runner interface {
	Run(w *World, eid Entity)
}

// AllRunner overrides the default per-entity RunAll loop.
type AllRunner interface {
	RunAll(w *World)
}

// Destroyer is invoked once when the world that owns this system instance
// is freed.
type Destroyer interface {
	Destroy(w *World)
}

// DrawMarker tags a system as belonging to the draw pass rather than the
// auto-run update pass, the language-neutral equivalent of subclassing a
// draw base class.
type DrawMarker interface {
	IsDrawSystem() bool
}

// systemDef is the process-level registration record for one system type.
type systemDef struct {
	queryKey   string
	components []string
	depth      int
	isDraw     bool
	factory    func() System
}

type systemRegistry struct {
	mu      sync.Mutex
	defs    []*systemDef
	byQuery map[string]*systemDef
	frozen  bool
}

var globalSystems = &systemRegistry{byQuery: make(map[string]*systemDef)}

// DefineSystem registers a system factory against the sorted-and-joined key
// of components. It panics with ErrDefineAfterFreeze if any world has
// already been created.
func DefineSystem(components []string, depth int, factory func() System) {
	sorted := append([]string(nil), components...)
	sort.Strings(sorted)
	key := strings.Join(sorted, "|")

	globalSystems.mu.Lock()
	defer globalSystems.mu.Unlock()
	if globalSystems.frozen {
		panic(ecserr.ErrDefineAfterFreeze)
	}
	isDraw := false
	if probe := factory(); probe != nil {
		if dm, ok := probe.(DrawMarker); ok {
			isDraw = dm.IsDrawSystem()
		}
	}
	def := &systemDef{queryKey: key, components: sorted, depth: depth, isDraw: isDraw, factory: factory}
	globalSystems.defs = append(globalSystems.defs, def)
	globalSystems.byQuery[key] = def
	resortSystems()
}

func resortSystems() {
	sort.SliceStable(globalSystems.defs, func(i, j int) bool {
		a, b := globalSystems.defs[i], globalSystems.defs[j]
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		return a.queryKey < b.queryKey
	})
}

// freezeSystems locks the system registry; called the moment the first
// World is constructed.
func freezeSystems() {
	globalSystems.mu.Lock()
	defer globalSystems.mu.Unlock()
	globalSystems.frozen = true
}

// resetGlobalSystemsForTest clears the process-level system registry.
// Production code never calls this; it exists so package tests can define
// independent system sets across test cases.
func resetGlobalSystemsForTest() {
	globalSystems.mu.Lock()
	defer globalSystems.mu.Unlock()
	globalSystems.defs = nil
	globalSystems.byQuery = make(map[string]*systemDef)
	globalSystems.frozen = false
}

// systemDefsSnapshot returns the registry's current defs, partitioned into
// run (depth>=0, non-draw), draw (depth>=0, draw), and manual (depth<0).
func systemDefsSnapshot() (run, draw, manual []*systemDef) {
	globalSystems.mu.Lock()
	defer globalSystems.mu.Unlock()
	for _, d := range globalSystems.defs {
		switch {
		case d.depth < 0:
			manual = append(manual, d)
		case d.isDraw:
			draw = append(draw, d)
		default:
			run = append(run, d)
		}
	}
	return
}

// systemInstance binds a System to the query it was registered against,
// within one world.
type systemInstance struct {
	def    *systemDef
	sys    System
	query  QueryInstance
	qstate *queryState
}

func defaultRunAll(w *World, si *systemInstance) {
	entities := si.query.Entities(w)
	if r, ok := si.sys.(Runner); ok {
		for _, eid := range entities {
			r.Run(w, eid)
		}
	}
}

func runSystemInstance(w *World, si *systemInstance) {
	if si.qstate != nil && si.qstate.primary.Len() == 0 {
		return
	}
	if ar, ok := si.sys.(AllRunner); ok {
		ar.RunAll(w)
		return
	}
	defaultRunAll(w, si)
}
