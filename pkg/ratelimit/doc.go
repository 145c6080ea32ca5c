// Package ratelimit provides per-client-IP token bucket rate limiting
// middleware for the HTTP surfaces.
package ratelimit
