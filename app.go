package meshopt

import (
	"fmt"
	"reflect"
	"runtime"
	"time"
)

// systemFn is any function whose parameters are all resolvable by the app:
// *Commands or pointers to registered resources. Resolution happens by
// reflection at call time, so a system declares exactly the state it touches.
type systemFn any

// Module is an installable unit: it registers resources and systems on the
// app. Modules are how the pipeline's pieces (tuning, streaming, batching)
// compose into one tick.
type Module interface {
	Install(app *App, cmd *Commands)
}

// App drives the pipeline. Unlike a windowed engine loop it does not own
// time: the host engine calls Tick once per frame with the measured frame
// duration, and the app runs every stage in fixed order. All mutation of
// shared state happens inside systems on the calling goroutine; systems may
// fan work out internally but must join before returning.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any

	// command buffering; flushed between stages
	pendingSpawns   []pendingSpawn
	pendingDespawns []EntityId
}

type pendingSpawn struct {
	eid    EntityId
	entity Entity
}

func NewApp() *App {
	app := &App{
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
	}
	app.stages = defaultStages()
	for _, stage := range app.stages {
		app.systems[stage.Name] = make([]systemFn, 0)
	}
	app.addResources(&TickInput{})
	return app
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

// UseModules installs the given modules immediately, in order.
func (app *App) UseModules(modules ...Module) *App {
	cmd := app.Commands()
	for _, module := range modules {
		app.modules = append(app.modules, module)
		module.Install(app, cmd)
	}
	return app
}

// Tick runs one simulation step: every stage in order, flushing buffered
// scene commands after each. dt is the duration of the frame that just
// ended, as measured by the host loop; it is untrusted input and clamped.
func (app *App) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	if tick, ok := resourceOf[TickInput](app); ok {
		tick.Dt = dt
	}

	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
}

// TickInput carries the externally supplied per-frame inputs into systems.
type TickInput struct {
	Dt time.Duration
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// resourceOf fetches a registered resource by type.
func resourceOf[T any](app *App) (*T, bool) {
	var zero T
	if r, ok := app.resources[reflect.TypeOf(zero)]; ok {
		return r.(*T), true
	}
	return nil, false
}

var typeOfCommands = reflect.TypeOf(Commands{})

// callSystem resolves each parameter of the system function against the
// resource map and invokes it. Unresolvable dependencies are programmer
// errors and panic with the system's name.
func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, ok := app.resources[underlyingType]; ok {
			args[i] = reflect.ValueOf(resource)
		} else {
			panic(fmt.Sprintf("unable to resolve system dependency\nsystem: %s\ndependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				argType,
			))
		}
	}
	systemValue.Call(args)
}

// FlushCommands applies buffered spawns and despawns to the scene. Removals
// run first so a same-tick respawn of an id never resurrects stale state.
func (app *App) FlushCommands() {
	if len(app.pendingSpawns) == 0 && len(app.pendingDespawns) == 0 {
		return
	}
	scene, ok := resourceOf[Scene](app)
	if !ok {
		app.pendingSpawns = app.pendingSpawns[:0]
		app.pendingDespawns = app.pendingDespawns[:0]
		return
	}

	for _, eid := range app.pendingDespawns {
		scene.remove(eid)
	}
	app.pendingDespawns = app.pendingDespawns[:0]

	for _, spawn := range app.pendingSpawns {
		scene.insert(spawn.eid, spawn.entity)
	}
	app.pendingSpawns = app.pendingSpawns[:0]
}

// Logger returns the installed Logger resource, or a no-op logger. Safe at
// any time; never nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	if res, ok := resourceOf[loggerResource](app); ok {
		return res.Logger
	}
	return NewNopLogger()
}
