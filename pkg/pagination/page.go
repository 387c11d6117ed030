package pagination

import "encoding/json"

// Record is one opaque result record. The traversal passes records
// through in server order without interpreting their fields; callers
// unmarshal into their own types as needed.
type Record = json.RawMessage

// Page is one fetched page of results.
type Page struct {
	// Records holds the page's records in server order.
	Records []Record

	// NextPageToken is the continuation token for the following page.
	// Empty means this was the final page.
	NextPageToken string

	// Total is the server-reported total number of matching records,
	// when the server includes it.
	Total *int64
}
