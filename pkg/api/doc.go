// Package api hosts the Gin HTTP servers of the account service, the
// notification service and the gateway, with shared middleware, metrics and
// graceful shutdown.
package api
