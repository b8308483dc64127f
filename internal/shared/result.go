package shared

// ResultError carries the machine code and human message of a failed mutation.
type ResultError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Result is the structured outcome returned by mutation endpoints.
type Result struct {
	OK    bool         `json:"ok"`
	Error *ResultError `json:"error,omitempty"`
}

// Success builds an ok result.
func Success() Result {
	return Result{OK: true}
}

// Failure converts err into a failed result.
func Failure(err error) Result {
	return Result{OK: false, Error: &ResultError{Code: CodeOf(err), Message: UserSafeMessage(err)}}
}
