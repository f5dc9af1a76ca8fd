package engine

// Context is an execution context handle. This design has one primary
// context per environment; the type exists so inspector bookkeeping can
// treat contexts as opaque identities with create/destroy lifecycles.
type Context struct {
	id  int
	env *Environment
}

// ID returns the context's numeric id.
func (c *Context) ID() int {
	return c.id
}

// Environment returns the owning environment.
func (c *Context) Environment() *Environment {
	return c.env
}
