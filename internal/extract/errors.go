package extract

import "fmt"

// ArticleFetchError reports an unexpected extraction-layer failure for one
// URL. Expected outcomes (unreachable hosts, empty text) are not errors;
// they surface as failure-marked articles instead.
type ArticleFetchError struct {
	URL string
	Err error
}

func (e *ArticleFetchError) Error() string {
	return fmt.Sprintf("fetch article %q: %v", e.URL, e.Err)
}

func (e *ArticleFetchError) Unwrap() error { return e.Err }
