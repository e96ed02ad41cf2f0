package evaluator

import (
	"context"
	"time"
)

// Handle is an opaque value produced by a collaborator: a database
// connection, a tabular frame, a trained model, or a deployment
// controller. Handles are truthy and compare by identity.
type Handle interface {
	Value
	HandleKind() string
}

// HandleBase is embedded by handle implementations in other packages to
// satisfy the sealed Value interface.
type HandleBase struct{}

func (HandleBase) value() {}

// Database executes queries and yields rows as dicts.
type Database interface {
	Handle
	Query(ctx context.Context, query string) ([]*Dict, error)
}

// Tabular is a frame of rows with a shape summary.
type Tabular interface {
	Handle
	Rows() []*Dict
	Describe() *Dict
}

// Model scores tabular data and exposes its training leaderboard.
type Model interface {
	Handle
	ModelName() string
	Leaderboard() *Array
	Predict(frame Tabular) ([]*Dict, error)
}

// Controller manages a deployed endpoint. Stop reports whether the
// endpoint shut down within the timeout.
type Controller interface {
	Handle
	URL() string
	Stop(timeout time.Duration) bool
}

// Adapters supplies the collaborator entry points the evaluator dispatches
// to. A nil field means the capability is unavailable and calls to it fail
// with an I/O diagnostic.
type Adapters struct {
	// Connect opens a database for a connection URI. Implementations fall
	// back to an in-memory mock when the URI is not reachable.
	Connect func(ctx context.Context, uri, user, password string) (Database, error)

	// Frame coerces a script value (array of dicts, or an existing frame)
	// into tabular form.
	Frame func(v Value) (Tabular, error)

	// AutoML trains a model against frame predicting the target column.
	AutoML func(ctx context.Context, frame Tabular, target string) (Model, error)

	// Deploy serves a model at url, returning either a Controller handle
	// or a dict describing the endpoint when serving is unavailable.
	Deploy func(model Model, url string) (Value, error)

	// Undeploy stops the endpoint identified by a controller handle or a
	// URL string, reporting whether it stopped within timeout.
	Undeploy func(target Value, timeout time.Duration) bool
}
