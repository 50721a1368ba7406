// Package transport implements the two call paths used to fetch case detail payloads.
//
// Direct calls the backend JSON API and is the primary transport. Proxy posts to a
// same-origin proxy endpoint carrying the session nonce and is used as the fallback.
// Both decode into prefetch.Payload so the loader's callers cannot tell them apart.
package transport
