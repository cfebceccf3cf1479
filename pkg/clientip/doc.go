// Package clientip resolves the originating client address of an HTTP
// request behind reverse proxies and carries it through context.Context.
//
// The client-ip feature strategy reads the address with GetIPFromContext
// when the user does not carry a "client_ip" attribute.
//
// Resolution checks the trusted proxy headers in order and falls back to
// RemoteAddr:
//
//  1. CF-Connecting-IP
//  2. DO-Connecting-IP
//  3. X-Forwarded-For (first valid entry)
//  4. X-Real-IP
//
// Headers can be spoofed by clients when no proxy strips them, so services
// exposed directly should use NewResolver(WithHeaders()) to trust RemoteAddr
// only.
//
// # Usage
//
//	handler = clientip.Middleware(handler)
//
//	// later, in a handler or strategy
//	ip := clientip.GetIPFromContext(ctx)
//
// Invalid or missing addresses resolve to "".
package clientip
