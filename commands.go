package meshopt

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// Spawn buffers an entity addition. The id is assigned now so callers can
// reference the entity immediately; the scene record appears at the next
// command flush.
func (cmd *Commands) Spawn(entity Entity) EntityId {
	scene, ok := resourceOf[Scene](cmd.app)
	if !ok {
		panic("spawn requires a Scene resource (install SceneModule first)")
	}
	eid := scene.nextEntityId()
	cmd.app.pendingSpawns = append(cmd.app.pendingSpawns, pendingSpawn{eid: eid, entity: entity})
	return eid
}

// Despawn buffers an entity removal, applied at the next command flush.
func (cmd *Commands) Despawn(eid EntityId) {
	cmd.app.pendingDespawns = append(cmd.app.pendingDespawns, eid)
}

// Logger returns the app's logger resource (or a no-op logger).
func (cmd *Commands) Logger() Logger {
	return cmd.app.Logger()
}
