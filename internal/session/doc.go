// Package session manages a Bangla to English translation session.
//
// A Session captures configuration only. Setup downloads the model bundle
// into the model directory, loads the source and target SentencePiece models
// and starts the inference engine, returning a ready Translator. Translate is
// therefore only reachable once setup succeeded; a nil Translator reports
// NOT_READY instead of panicking.
//
// Every failure is a *Error carrying a Kind, so callers can branch on
// the failure class without string matching:
//
//	tr, err := session.New(cfg).Setup(ctx)
//	if session.KindOf(err) == session.KindDownloadFailed { ... }
package session
