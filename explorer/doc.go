// Package explorer keeps flattened, partially expanded views of directory
// trees in sync with the filesystem.
//
// Each registered root is materialized into a pre-order list of visible
// nodes. Every node carries the index of the first node after its subtree,
// so a client can skip a collapsed subtree in constant time:
//
//	svc, watcher, err := explorer.Open(explorer.Config{})
//	if err != nil {
//		return err
//	}
//	defer watcher.Close()
//
//	root, err := svc.AddRoot(ctx, "/srv/data", nil)
//	if err != nil {
//		return err
//	}
//	payload := svc.Trees(ctx)
//	for i, node := range payload.Trees[0].Files {
//		fmt.Println(i, node.Name, node.NextNonChild)
//	}
//
// Expanding a directory is a matter of replacing the root's expansion map,
// keyed by file identity:
//
//	svc.UpdateRoot(ctx, root.ID, map[explorer.FileID]string{
//		root.ID: root.Path,
//		srcID:   "/srv/data/src",
//	})
//
// Run svc.Serve to recompute and broadcast a fresh Payload to every
// subscriber whenever a watched directory changes. Handler exposes the same
// service over HTTP and a websocket.
package explorer
