package meshopt

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResource struct {
	hits int
}

func TestApp_addResources(t *testing.T) {
	app := NewApp()

	res := &mockResource{}
	app.addResources(res)
	assert.Contains(t, app.resources, reflect.TypeOf(*res))

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(res)), func() {
		app.addResources(res)
	})
	require.Panics(t, func() {
		app.addResources(mockResource{}) // not a pointer
	})
}

func TestApp_SystemInjection(t *testing.T) {
	app := NewApp()
	app.addResources(&mockResource{})
	app.UseSystem(System(func(r *mockResource) { r.hits++ }))

	app.Tick(time.Millisecond)
	app.Tick(time.Millisecond)

	res, _ := resourceOf[mockResource](app)
	assert.Equal(t, 2, res.hits)
}

func TestApp_SystemStageOrder(t *testing.T) {
	app := NewApp()
	var order []string
	app.UseSystem(System(func() { order = append(order, "render") }).InStage(PreRender))
	app.UseSystem(System(func() { order = append(order, "update") }))
	app.UseSystem(System(func() { order = append(order, "prelude") }).InStage(Prelude))

	app.Tick(time.Millisecond)
	assert.Equal(t, []string{"prelude", "update", "render"}, order)
}

func TestApp_UnresolvableDependencyPanics(t *testing.T) {
	app := NewApp()
	app.UseSystem(System(func(r *mockResource) {}))
	assert.Panics(t, func() { app.Tick(time.Millisecond) })
}

func TestApp_UnknownStagePanics(t *testing.T) {
	app := NewApp()
	assert.Panics(t, func() {
		app.UseSystem(System(func() {}).InStage(Stage{Name: "Nope"}))
	})
}

func TestApp_CustomStageInsertion(t *testing.T) {
	app := NewApp()
	shadow := Stage{Name: "Shadow"}
	app.UseStage(shadow, BeforeStage(PreRender))

	var order []string
	app.UseSystem(System(func() { order = append(order, "shadow") }).InStage(shadow))
	app.UseSystem(System(func() { order = append(order, "render") }).InStage(PreRender))

	app.Tick(time.Millisecond)
	assert.Equal(t, []string{"shadow", "render"}, order)
}

func TestApp_TickClampsNegativeDt(t *testing.T) {
	app := NewApp()
	var seen time.Duration
	app.UseSystem(System(func(in *TickInput) { seen = in.Dt }))
	app.Tick(-5 * time.Second)
	assert.Equal(t, time.Duration(0), seen)
}

func TestCommands_SpawnDespawn(t *testing.T) {
	app := NewApp()
	app.UseModules(SceneModule{})
	scene, _ := resourceOf[Scene](app)
	cmd := app.Commands()

	a := cmd.Spawn(Entity{Position: mgl32.Vec3{1, 0, 0}})
	b := cmd.Spawn(Entity{Position: mgl32.Vec3{2, 0, 0}})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 0, scene.Len(), "spawns are buffered until flush")

	app.FlushCommands()
	assert.Equal(t, 2, scene.Len())

	ent, ok := scene.Get(a)
	require.True(t, ok)
	assert.Equal(t, float32(1), ent.Position.X())

	cmd.Despawn(a)
	app.FlushCommands()
	assert.Equal(t, 1, scene.Len())
	_, ok = scene.Get(a)
	assert.False(t, ok)
}

func TestScene_EachVisitsAscendingIds(t *testing.T) {
	app := NewApp()
	app.UseModules(SceneModule{})
	scene, _ := resourceOf[Scene](app)
	cmd := app.Commands()

	var spawned []EntityId
	for i := 0; i < 10; i++ {
		spawned = append(spawned, cmd.Spawn(Entity{}))
	}
	app.FlushCommands()

	var visited []EntityId
	scene.Each(func(id EntityId, _ *Entity) bool {
		visited = append(visited, id)
		return true
	})
	assert.Equal(t, spawned, visited)
}

func TestApp_LoggerFallsBackToNop(t *testing.T) {
	app := NewApp()
	log := app.Logger()
	require.NotNil(t, log)
	log.Infof("no logging module installed, must not panic")
}

func TestLoggingModule_InstallsLogger(t *testing.T) {
	app := NewApp()
	app.UseModules(LoggingModule{Level: "debug"})
	log := app.Logger()
	require.NotNil(t, log)
	log.Debugf("hello from %s", t.Name())
}
