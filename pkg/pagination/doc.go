// Package pagination walks token-continued result pages as lazy sequences.
//
// The search endpoint returns one page per request together with an
// opaque continuation token; the next request must carry that token, so
// pages are fetched strictly sequentially. This package turns that
// page-at-a-time contract into pull-based iterators over whole pages or
// individual records.
//
// Example usage:
//
//	pager := pagination.NewPager(ctx, fetcher, "group:css")
//	for pager.Next() {
//		page := pager.Page()
//		// use page.Records
//	}
//	if err := pager.Err(); err != nil {
//		// traversal failed
//	}
//
// A traversal:
//   - fetches lazily, one page per Next call
//   - terminates on a page without a continuation token, or an empty page
//   - stops with ErrTokenCycle if the server repeats a token
//   - is not restartable; create a new Pager to walk again
package pagination
