// Package memory persists conversations as timestamped snapshot files.
//
// Storage model:
//   - One flat directory (~/.bb) holds every artifact; nothing is pruned.
//   - Filenames encode the artifact kind and an epoch-ms stamp, so a
//     directory listing is enough to classify them (see Classify).
//   - Turn snapshots, pre-clear snapshots and quota-exceeded dumps are
//     written here; request/response logs and session reports from other
//     packages share the folder but are never resumed.
//   - Load picks the newest resumable snapshot and always overwrites its
//     system prompt with the current one.
package memory
