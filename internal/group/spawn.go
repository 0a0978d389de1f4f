package group

import "context"

// Spawn starts every task in order under parentDir and returns the group of
// those that started, the resulting mode, and one *SpawnError per task that
// could not start.
//
// A spawn failure moves the mode to end.ModeAfterFailure() but never stops
// the loop: what happens to a partial group is decided while polling.
func Spawn[M any](ctx context.Context, spawner Spawner, tasks []Task[M], parentDir string, end End) (*Group[M], Mode, []error) {
	g := New[M]()
	mode := ModeProcessAll
	var errs []error

	for _, task := range tasks {
		h, err := spawner.Spawn(ctx, parentDir, task.Subdir, task.ID, task.Options)
		if err != nil {
			mode = NextMode(mode, true, end)
			errs = append(errs, &SpawnError{
				Subdir:      task.Subdir,
				TaskID:      task.ID,
				Description: task.Description,
				Err:         err,
			})
			continue
		}
		g.Insert(h.PID(), h, task)
	}
	return g, mode, errs
}
