// Package pagination walks cursor-paginated MyCase collections.
//
// MyCase advertises the next page in a Link header:
//
//	Link: <https://external-integrations.mycase.com/v1/cases?page_token=abc>; rel="next"
//
// The Driver requests a page, collects its items, extracts page_token from the
// next relation and feeds it into the following request until one of the stop
// conditions is reached:
//   - no rel="next" link (StopNoNext)
//   - next link without page_token (StopMissingToken)
//   - MaxConsecutiveEmpty empty pages in a row (StopEmptyStreak)
//   - a single object instead of a collection (StopSingleResource)
//   - MaxPages pages fetched (StopMaxPages)
//   - a JSON scalar body (StopUnsupportedShape)
//
// Stop conditions are not errors. A failed page request aborts the walk.
//
// Example usage:
//
//	driver := pagination.NewDriver(mycaseClient, pagination.DefaultConfig())
//	result, err := driver.Walk(ctx, "/cases", client.NewParams("filter[status]", "open"))
//
// Pages are fetched sequentially with PageDelay between them; the client's
// rate limiter still applies to every request.
package pagination
