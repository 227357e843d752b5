// Package cli provides the interactive invoicer command-line client.
//
// It wires configuration, the local store, the offline service and a REPL.
// A background connectivity watcher shows online/offline in the prompt and
// drains the pending request queue every time the server comes back.
//
// Commands:
//   - drafts / draft / save / rmdraft: manage local drafts
//   - queue / enqueue / dequeue: inspect and edit the pending request queue
//   - submit: send a write now, or keep it queued with its draft
//   - sync: run a synchronization pass by hand
//   - clear: wipe all local data
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and execIface for details.
package cli
