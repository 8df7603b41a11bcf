// Package fetch runs requests through an authenticated session with the
// transfer retry policy.
//
// After the i-th failed attempt (counting from zero) a transport or server
// fault waits min(2^i, MaxBackoff) seconds. A client error other than 404 or
// 416 means the session was dropped: the executor logs in once and tries
// again without waiting. When every attempt fails the last error comes back
// wrapped in a retries_exhausted error.
package fetch
