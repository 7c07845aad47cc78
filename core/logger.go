package core

// Logger is the application-wide logging contract. Implementations live in
// services/logger: a plain console logger for DEV|TEST and a Rollbar-backed
// one for deployed environments.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
