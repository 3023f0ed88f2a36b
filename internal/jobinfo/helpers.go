package jobinfo

import "time"

// MarkRunningAsFinishedSuccessfully is shorthand for
// MarkRunningAsFinished with a SUCCESSFUL result and no message.
func MarkRunningAsFinishedSuccessfully(r Repository, name string, now time.Time) (bool, error) {
	return r.MarkRunningAsFinished(name, Successful, "", now)
}

// MarkRunningAsFinishedWithException is shorthand for
// MarkRunningAsFinished with a FAILED result, using the given error's
// message as the result message.
func MarkRunningAsFinishedWithException(r Repository, name string, cause error, now time.Time) (bool, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.MarkRunningAsFinished(name, Failed, msg, now)
}
