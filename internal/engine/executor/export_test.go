package executor

// SetEnviron replaces the process environment source.
func (e *Executor) SetEnviron(fn func() []string) {
	e.environ = fn
}

// ResolveEnvironment exposes resolveEnvironment for testing.
var ResolveEnvironment = resolveEnvironment
