// Package process holds the small pieces shared by everything that runs an
// external binary: a registry of live commands so shutdown can kill them,
// and a bounded stderr tail used for diagnostics.
package process
