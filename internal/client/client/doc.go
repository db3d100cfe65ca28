// Package client talks to the coderoom HTTP API.
//
// # Overview
//
// Client is the contract the rest of the terminal client depends on;
// HTTPClient implements it over net/http. Every call carries the session
// token as a bearer header once one is set (after Register or Login, or
// via SetToken when a saved token is restored).
//
// # Error Handling
//
// Non-2xx answers become *APIError, which unwraps to a sentinel:
// 401 → common.ErrorUnauthorized, 404 → common.ErrorNotFound,
// 400 → common.ErrorValidation. Transport failures wrap ErrUnavailable.
//
// HTTPClient is safe for concurrent use.
package client
