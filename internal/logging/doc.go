// Package logger provides leveled, colored logging for forge commands.
//
// # Verbosity Levels
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details and errors
//
// # Log Methods
//
//	Logger.Infof()           // Shown with --verbose or --debug
//	Logger.Debugf()          // Shown only with --debug
//	Logger.Warnf()           // Shown with --verbose or --debug
//	Logger.WarnfAlways()     // Always shown
//	Logger.Errorf()          // Shown with --debug
//	Logger.ErrorfAndReturn() // Errorf, then returns the message as an error
//
// Log messages must never name the duress mode. A coerced user's screen and
// terminal scrollback show the same words for a decoy unlock as for a real
// one.
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Opened vault at %s", location)
package logger
