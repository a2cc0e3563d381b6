package main

// Exit codes
const (
	ExitSuccess            = 0 // Success
	ExitError              = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError        = 2 // Configuration error / index or metadata artifact not found
	ExitDataError          = 3 // Build input error (malformed or duplicate records)
	ExitAlignmentError     = 4 // Index and metadata do not belong together
	ExitEncoderUnavailable = 5 // Embedding backend not reachable
	ExitModelNotFound      = 6 // Embedding model not served by the backend
)
