// Package testutil provides fixtures shared by the package tests: fake model
// bundles, a whitespace tokenizer, a snapshot fetcher, a mock translation
// provider and an in-process model hub.
package testutil
