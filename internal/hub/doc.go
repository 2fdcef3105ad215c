// Package hub fetches model repositories from a Hugging Face compatible model
// hub. It mirrors a repository revision into a plain local directory, the way
// snapshot downloads with a local_dir do, skipping files that are already
// present with the expected size.
package hub
