// Package httputil provides the HTTP plumbing shared by remote image loads.
//
// # Client
//
// [NewClient] returns an *http.Client with a request timeout and a
// User-Agent that identifies the build. [NewPublicClient] additionally
// refuses to dial loopback, private and link-local addresses, for URLs that
// come from API clients.
//
// # Retry
//
// A [Policy] retries an operation with capped exponential backoff. Only
// errors wrapped in [RetryableError] are retried, so callers decide what is
// transient. [CheckResponse] treats 5xx and 429 as transient and carries the
// server's Retry-After into the wait.
//
//	err := httputil.DefaultPolicy.Do(ctx, func(attempt int) error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckResponse(resp)
//	})
package httputil
