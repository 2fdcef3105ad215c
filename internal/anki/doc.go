// Package anki exports translations as Anki flashcards, either as a CSV file
// for the Anki import dialog or as a self-contained .apkg package.
package anki
