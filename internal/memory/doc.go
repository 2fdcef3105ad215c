// Package memory keeps a history of translations in a SQLite database so batch
// runs can skip texts that were already translated and the history command can
// list recent results.
package memory
