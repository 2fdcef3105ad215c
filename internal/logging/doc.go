// Package logging builds the zerolog loggers used for diagnostics. Prompts
// and translations go to stdout through fmt; everything the user does not
// need to read interactively goes through these loggers to stderr.
package logging
