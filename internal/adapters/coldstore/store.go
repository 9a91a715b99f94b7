// Package coldstore defines the immutable archive contract, the JSONL batch
// codec, and the Google Cloud Storage implementation. Batch objects are
// create-only: once written they are never modified or replaced.
package coldstore

import "context"

// Archive is the create-only object store for finalized guess batches.
type Archive interface {
	// Put durably writes body under key. The write is create-only;
	// a concurrent writer of the same key is harmless because both
	// bodies describe the same snapshot (at-least-once semantics).
	Put(ctx context.Context, key string, body []byte) error
}
