// Package logger wraps zap for the face-attendance client:
//   - a global sugared logger writing console-formatted lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV) so services
//     carry a scoped logger through the attendance workflow,
//   - level parsing for the --log-level flag and the settings file.
//
// Command output goes to stdout; logs never do, so piping `history` or
// `stats` into other tools keeps working.
package logger
