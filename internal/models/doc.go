// Package models lists the files of a model hub repository, grouped into
// tokenizer models, inference engine files and everything else, so users can
// check a bundle before downloading it.
package models
