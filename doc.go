// Package stok bootstraps network services. An Application owns an ordered set of modules that are shut
// down in reverse registration order, wires OS signals to that shutdown, and builds the HTTP server the
// service runs on.
//
// The server comes back with stok's guarantees already applied: it has exactly one connection, its
// start outcome is tracked, failing route handlers produce error responses, and every request is
// logged. The server registers itself as the first module, so it is the last thing to stop.
//
// Configuration loading lives in the config package and logger construction in the logging package.
//
// Shutdown runs once. Later or concurrent calls, including ones triggered by signals, observe the
// outcome of that first run. We intentionally left the CLI glue layer off so consumers can bring their
// tooling of choice.
package stok
