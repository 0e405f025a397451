package apps

import "fmt"

// ArgumentError is a bad command-line argument or query parameter. Both surfaces report it as a usage error.
type ArgumentError struct {
	Name string // offending argument, empty when the error is about the command as a whole
	msg  string
}

func NewArgumentError(msg string) *ArgumentError {
	return &ArgumentError{msg: msg}
}

// InvalidArgument reports a bad value for the named argument.
func InvalidArgument(name, format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{Name: name, msg: fmt.Sprintf(format, args...)}
}

func (err *ArgumentError) Error() string {
	if err.Name == "" {
		return err.msg
	}
	return err.Name + ": " + err.msg
}
