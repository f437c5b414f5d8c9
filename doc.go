// Package notesync is the composition root of a personal note-taking client
// core.
//
// It connects the domain layer (pkg/core) with the storage and identity
// adapters using a hexagonal layout:
//
//   - A session store tracks the signed-in identity and broadcasts every
//     transition serially.
//   - A note repository offers CRUD plus live, owner-scoped subscriptions
//     ordered newest first.
//   - A navigator mounts the auth or the app screen stack from the session,
//     tearing down the previous stack's subscriptions on every transition.
//
// The default adapter keeps notes as Markdown files with YAML frontmatter and
// accounts in a bbolt database; the memory adapter keeps everything in process.
//
// Usage:
//
//	svc, err := notesync.New("./vault", notesync.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//	svc.Start()
//
//	nav := svc.Navigator()
//	nav.OnChange(func(s core.NavState) { render(s) })
package notesync
