// Package archive moves previous batch results out of the way before a new
// batch run writes its output.
package archive
