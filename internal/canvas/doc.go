// Package canvas defines the canvas row, its node and edge model, and the
// interfaces shared by the storage, fetch, and save subsystems.
package canvas
