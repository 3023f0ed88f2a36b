// Package archive builds the tar.gz byte stream handed to the remote
// executor's start request.
package archive

import "io"

// Provider produces an archive for a named job, ready to be streamed
// as the body of a remote start request.
type Provider interface {
	CreateArchive(jobName string) (io.Reader, error)
}
