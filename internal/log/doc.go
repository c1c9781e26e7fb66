// Package log provides slog loggers that sanitize credentials before they
// reach the output.
//
// The SecureHandler masks:
//   - HTTP credentials (Authorization, Cookie, X-Api-Key)
//   - identity material such as bearer tokens, JWTs and the token signing
//     secret, recognised by key name or by value shape
//   - PEM private keys
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Level(verbose, slog.LevelInfo))
//	logger.Info("token issued", "token", tok) // token=***REDACTED***
//	slog.SetDefault(logger)
//
// LineWriter and PanicLogger adapt a logger to the io.Writer and Println
// shapes that HTTP middleware expects.
package log
