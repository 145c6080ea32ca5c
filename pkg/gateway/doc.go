// Package gateway implements the edge router in front of the account and
// notification services. Each upstream is proxied behind a circuit breaker
// and answers with a fixed fallback payload when it is unavailable.
package gateway
