package gqlclient

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// NetworkError is a transport-level failure: the request could not be sent
// or the server answered with a non-2xx status. Errors holds the GraphQL
// errors found in the response body, if any.
type NetworkError struct {
	StatusCode int
	Errors     gqlerror.List
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("network error: %v", e.Err)
	case len(e.Errors) > 0:
		return fmt.Sprintf("response not successful: received status code %d: %s", e.StatusCode, e.Errors.Error())
	}
	return fmt.Sprintf("response not successful: received status code %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// compactErrors drops the null entries a server may put in its error list.
func compactErrors(list gqlerror.List) gqlerror.List {
	if len(list) == 0 {
		return nil
	}
	out := make(gqlerror.List, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
