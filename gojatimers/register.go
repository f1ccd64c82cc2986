package gojatimers

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-jstimers/interval"
)

// ModuleName is the conventional name of the module, see [Require].
const ModuleName = "timers"

// Require returns a [require.ModuleLoader] exporting the timer functions,
// rather than installing them as globals, e.g.
//
//	registry := require.NewRegistry()
//	registry.RegisterNativeModule(gojatimers.ModuleName, gojatimers.Require(s.Timers()))
//	registry.Enable(runtime)
//
// Then, in script:
//
//	const { setTimeout } = require('timers');
func Require(timers *interval.Timers, opts ...Option) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		x, err := newBinding(runtime, timers, opts)
		if err != nil {
			panic(runtime.NewGoError(err))
		}
		exports := module.Get("exports").(*goja.Object)
		if err := x.setupExports(exports); err != nil {
			panic(runtime.NewGoError(err))
		}
	}
}
