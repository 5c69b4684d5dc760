// Package pagination implements the offset walk over paginated Jira search
// results, with dedup, limit enforcement, and optional overscan.
//
// The fetcher walks the result set page by page and yields each record at
// most once per invocation. With overscan enabled, a change in the
// server-reported total between pages is taken as evidence that the backing
// collection was mutated mid-iteration; the walk then restarts from offset
// zero after finishing the current pass, keeping the dedup set so records
// already yielded are never re-yielded.
//
// Example usage:
//
//	seq := pagination.FetchAll(ctx, searcher, `project = PRODUCT`, pagination.Options[*issues.Issue]{
//		Limit:    100,
//		Overscan: true,
//	})
//	for issue, err := range seq {
//		if err != nil {
//			return err
//		}
//		// ...
//	}
//
// Overscan is reserved for read-only iteration: creating records in the
// scanned collection while overscanning can restart the walk indefinitely,
// and the fetcher does not bound the number of restarts.
package pagination
