// Package gojatimers binds [interval.Timers] to a [goja.Runtime], providing
// the setTimeout, setInterval, clearTimeout and clearInterval globals.
//
// # Binding
//
//	rt := goja.New()
//	binding, err := gojatimers.Bind(rt, s.Timers())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Alternatively, [Require] exposes the same functions as a module, loaded
// via [require.Registry].
//
// # Handlers
//
// A function handler is called with this undefined, and any extra arguments
// passed after the timeout. Any other handler is converted to a string, and
// evaluated as script, when the timer fires.
//
// # Thread Safety
//
// Neither the runtime nor the timers are thread-safe. Scripts must run on the
// goroutine that fires the timers, e.g. via [scope.Scope.Submit].
//
// [require.Registry]: https://pkg.go.dev/github.com/dop251/goja_nodejs/require#Registry
// [scope.Scope.Submit]: https://pkg.go.dev/github.com/joeycumines/go-jstimers/scope#Scope.Submit
package gojatimers
