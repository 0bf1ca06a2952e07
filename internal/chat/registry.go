package chat

import (
	"sort"
)

// Registry maps command names to handlers. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds commands to the registry. Registering two commands with the
// same name is a programming error.
func (r *Registry) Register(cmds ...Command) {
	for _, cmd := range cmds {
		if _, ok := r.commands[cmd.Name()]; ok {
			panic("chat command registered twice: " + cmd.Name())
		}
		r.commands[cmd.Name()] = cmd
	}
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Authorized returns the commands the context may run, sorted by name.
func (r *Registry) Authorized(ctx *Context) []Command {
	var cmds []Command
	for _, cmd := range r.commands {
		if cmd.Authorized(ctx) {
			cmds = append(cmds, cmd)
		}
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	return cmds
}
