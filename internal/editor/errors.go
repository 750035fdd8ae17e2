package editor

// OpenError reports that the editor could not be opened. Message is meant
// for the user.
type OpenError struct {
	Location   Location
	StatusCode int
	Message    string
	Err        error
}

func (e *OpenError) Error() string {
	return e.Message
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
