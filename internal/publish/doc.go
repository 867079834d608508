// Package publish decides, for each local document, whether it must be
// published and runs the publishes on a bounded pool of workers.
//
// Overview
//
// Every document goes through the same job:
//
//	read document → render payload → save payload to state dir
//	     → fingerprint payload → compare with last synced fingerprint
//	          ├── equal     → skipped ("Skipping (already synced): A.md")
//	          └── different → publish ("Updating: A.md")
//	                             ├── ok    → record fingerprint → updated
//	                             └── error → failed (fingerprint untouched)
//
// The fingerprint is recorded only after the publish call returned
// successfully, so a failed or interrupted job is simply retried by the next
// run.
//
// Usage
//
//	sched := publish.New(source, renderer, store, publish.Options{Workers: 4})
//	results, err := sched.RunAll(ctx, docs, func(ctx context.Context, doc string, payload []byte) error {
//	    _, err := gw.CreateOrUpdateChild(ctx, parentID, space, doc, payload)
//	    return err
//	})
//
// Error Handling
//
// RunAll never stops early. Every job runs to completion; afterwards, if any
// failed, an *AggregateError listing each failed document is returned along
// with the full result set. Jobs that succeeded keep their recorded
// fingerprints even when others failed.
//
// Dry Run
//
// With Options.DryRun the decision is made and logged as
// "Would update: A.md", but neither the publish function nor any state write
// happens.
package publish
