//go:generate mockgen -package=mocks -destination=../../mocks/mock_logger.go github.com/gocircum/obfsmeter/pkg/logging Logger

package logging

// Logger defines a common interface for logging.
// Components receive a Logger instead of reaching for the global one so
// that tests can silence or inspect output.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}
