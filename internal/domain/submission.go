package domain

// Submission is a file uploaded by a client in server mode
type Submission struct {
	Filename string
	Contents []byte
}

// SubmissionResult is what the server returns to the submitting client
type SubmissionResult struct {
	Success  bool
	Filename string
	// Object holds the compiled artifact on success
	Object []byte
	// Diagnostic holds the compiler log or read-back error on failure
	Diagnostic string
}
