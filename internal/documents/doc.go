// Package documents coordinates the scoped file tree, the ledger and the
// vector index.
//
// Every operation keeps the three stores in agreement:
//
//   - AddDocuments writes vectors first and ledger rows second, so a row
//     never exists without its vectors.
//   - RemoveDocuments deletes vectors first and ledger rows second.
//   - MoveEntries refuses to move any file a ledger row references.
//   - CreateFolder and MoveEntries never touch a path outside the actor's
//     scoped root.
//
// Per-item problems are reported in the returned result. Only malformed
// calls, and relocation faults under FailBatch, return an error.
package documents
