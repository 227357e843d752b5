// Package drafts persists in-progress documents in the local store.
//
// A draft is keyed by its document id. Saving an existing id replaces the
// stored payload (last write wins, no merge). Reads of an unknown id return
// (nil, nil); deleting an unknown id is a no-op.
//
//	repo := drafts.NewSQLiteRepository(st)
//	_ = repo.Save(ctx, d)
//	d, _ := repo.Get(ctx, "inv-42")
//	all, _ := repo.List(ctx)
//	_ = repo.Delete(ctx, "inv-42")
package drafts
