package evaluator

// Env is the variable store. CherryScript uses a single flat frame:
// function calls snapshot the frame, bind parameters, and restore it on
// return, so loop and block bindings persist while function-local ones do
// not.
type Env struct {
	bindings map[string]Value
}

func NewEnv() *Env {
	return &Env{bindings: make(map[string]Value)}
}

func (e *Env) Get(name string) (Value, bool) {
	v, ok := e.bindings[name]
	return v, ok
}

func (e *Env) Set(name string, v Value) {
	e.bindings[name] = v
}

func (e *Env) Has(name string) bool {
	_, ok := e.bindings[name]
	return ok
}

// Snapshot copies the current frame.
func (e *Env) Snapshot() map[string]Value {
	saved := make(map[string]Value, len(e.bindings))
	for k, v := range e.bindings {
		saved[k] = v
	}
	return saved
}

// Restore replaces the frame with a snapshot.
func (e *Env) Restore(saved map[string]Value) {
	e.bindings = saved
}

func (e *Env) Len() int { return len(e.bindings) }
