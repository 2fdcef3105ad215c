// Package processor contains the application logic behind the commands. It
// owns the translation session, the optional fallback provider, the history
// and the cache. It runs the interactive loop, single translations, batch
// files, model downloads, history listings and flashcard exports.
package processor
