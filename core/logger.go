package core

// Logger is implemented by the logging services.
// expected args: error, map[string]interface{} (extra data) or auth.Identity (the person to report).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
