// Package batch reads batch translation input files: one Bangla text per line,
// optionally followed by "= reference translation".
package batch
