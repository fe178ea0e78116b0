// Package version holds the library version reported on the health route.
package version

// Version is the stok library version.
const Version = "1.0.0"
