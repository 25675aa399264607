package models

// JobStatus represents the status of a build request
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
)

// Result is the outcome of a finished build request
type Result string

const (
	ResultNoResult  Result = "no_result"
	ResultSuccess   Result = "success"
	ResultWarnings  Result = "warnings"
	ResultFailure   Result = "failure"
	ResultSkipped   Result = "skipped"
	ResultException Result = "exception"
	ResultRetry     Result = "retry"
)

// Results lists every result in display order
var Results = []Result{
	ResultNoResult,
	ResultSuccess,
	ResultWarnings,
	ResultFailure,
	ResultSkipped,
	ResultException,
	ResultRetry,
}

// buildbot result codes, in the order buildbot numbers them
var resultCodes = []Result{
	ResultSuccess,
	ResultWarnings,
	ResultFailure,
	ResultSkipped,
	ResultException,
	ResultRetry,
}

// ResultFromCode maps a buildbot numeric result to a Result
func ResultFromCode(code int64) Result {
	if code < 0 || code >= int64(len(resultCodes)) {
		return ResultNoResult
	}
	return resultCodes[code]
}
