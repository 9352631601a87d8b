// Package logsvc implements core.Logger on a std logger, reporting to Rollbar when enabled.
package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
)

type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger printing to std. Reports are sent to Rollbar only
// when a token is configured outside of debug and test mode.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// Debug is printed in debug mode only.
func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log(rollbar.DEBUG, msg, args)
	}
}

func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}

// log reports and prints msg. Args are errors, extra maps or the auth.Identity the report is about.
func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	id, extras := splitIdentity(args)
	if id != nil {
		rollbar.SetPerson(id.UID, id.Email, id.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, append([]interface{}{msg}, extras...)...)

	l.std.Println(msg)
	for _, extra := range extras {
		l.std.Printf("%+v\n", extra)
	}
}

// splitIdentity takes the first identity out of args.
func splitIdentity(args []interface{}) (*auth.Identity, []interface{}) {
	var id *auth.Identity
	extras := make([]interface{}, 0, len(args))
	for _, arg := range args {
		var found *auth.Identity
		switch a := arg.(type) {
		case auth.Identity:
			found = &a
		case *auth.Identity:
			found = a
		default:
			extras = append(extras, arg)
			continue
		}
		if id == nil {
			id = found
		}
	}
	return id, extras
}
