// Package apiresponses provides the standardized HTTP error bodies shared by
// the account controller and the gateway.
package apiresponses
