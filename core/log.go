package core

// Logger is the application logging contract.
// Implementations may forward entries to an error tracking backend in
// addition to the standard output.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
