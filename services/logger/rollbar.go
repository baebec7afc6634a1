// Package logsvc logs to a standard logger and reports to rollbar.
package logsvc

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/identity"
)

// RollbarLogger prints every message and reports it to rollbar when reporting is enabled.
// Args may hold errors, map[string]interface{} extras and the acting identity.Identity;
// the first identity found is reported as the rollbar person.
type RollbarLogger struct {
	std    *log.Logger
	client *rollbar.Client
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger reports only outside debug and test runs, and only with a token configured.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.NewAsync(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(reportingEnabled(conf))
	return &RollbarLogger{std: std, client: client}
}

// NewDiscardLogger returns a logger that neither prints nor reports, for tests.
func NewDiscardLogger() *RollbarLogger {
	client := rollbar.NewAsync("", "", "", "", "")
	client.SetEnabled(false)
	return &RollbarLogger{std: log.New(io.Discard, "", 0), client: client}
}

func reportingEnabled(conf *core.Config) bool {
	return !conf.Debug && !conf.TestMode && conf.RollbarToken != ""
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) {
	items := make([]interface{}, 0, len(args)+1)
	items = append(items, msg)
	var person *identity.Identity
	for _, arg := range args {
		if idt, ok := arg.(identity.Identity); ok {
			if person == nil {
				person = &idt
			}
			continue
		}
		items = append(items, arg)
	}

	if person != nil {
		l.client.SetPerson(person.ID, person.Username, person.Email)
	} else {
		l.client.ClearPerson()
	}
	l.client.Log(level, items...)
	l.std.Println(format(level, msg, items[1:], person))
}

// format renders one line: "[LEVEL] msg | err: ... | k=v ... | identity=username".
func format(level, msg string, args []interface{}, person *identity.Identity) string {
	parts := []string{fmt.Sprintf("[%s] %s", strings.ToUpper(level), msg)}
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			parts = append(parts, "err: "+v.Error())
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			kvs := make([]string, 0, len(keys))
			for _, k := range keys {
				kvs = append(kvs, fmt.Sprintf("%s=%v", k, v[k]))
			}
			parts = append(parts, strings.Join(kvs, " "))
		default:
			parts = append(parts, fmt.Sprintf("%+v", v))
		}
	}
	if person != nil {
		parts = append(parts, "identity="+person.Username)
	}
	return strings.Join(parts, " | ")
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }

func (l *RollbarLogger) Info(msg string, args ...interface{}) { l.log(rollbar.INFO, msg, args) }

func (l *RollbarLogger) Warn(msg string, args ...interface{}) { l.log(rollbar.WARN, msg, args) }

func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal reports, waits for pending reports to be sent, then exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	l.client.Wait()
	l.std.Fatal(msg)
}
