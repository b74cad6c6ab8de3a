package main

import (
	"os"

	"github.com/bhorowitz/gitgo/ginternals/object"
)

// commitIdentity builds the author/committer signature used by commands
// that create new commits. This is the only place the CLI layer reads
// wall-clock time; every other layer requires an explicit signature.
func commitIdentity() object.Signature {
	name := os.Getenv("GITGO_AUTHOR_NAME")
	if name == "" {
		name = "gitgo"
	}
	email := os.Getenv("GITGO_AUTHOR_EMAIL")
	if email == "" {
		email = "gitgo@localhost"
	}
	return object.NewSignature(name, email)
}
