// Package flickr implements the authenticated client for the Flickr REST
// API surface the export needs: listing photostream pages, fetching item
// detail, and downloading original assets.
//
// Requests are signed with OAuth 1.0a using a capability token obtained
// from an external authorization flow. Calls are paced by a rate limiter
// and retried with exponential backoff on rate-limit, network and server
// failures; authorization failures are surfaced immediately so the caller
// can abort the run.
package flickr
