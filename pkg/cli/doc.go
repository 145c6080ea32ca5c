// Package cli defines the notifier command tree: serve runs the selected
// service components, send delivers a single notification directly and
// version prints build metadata.
package cli
