// Package adapters implements the collaborator capabilities CherryScript
// scripts reach through connect, h2o.*, deploy, and undeploy: a database
// layer backed by squealx with an in-memory mock fallback, a lightweight
// tabular frame, a mock AutoML trainer, and a fiber-based model server.
package adapters

import (
	"time"

	"github.com/oarkflow/log"

	"github.com/cherrylang/cherryscript/pkg/evaluator"
)

// DBOptions carries default credentials and pool sizing for real database
// connections; fields left zero fall back to values from the URI or
// driver defaults.
type DBOptions struct {
	Username     string
	Password     string
	MaxIdleConns int
	MaxOpenConns int
}

// Options parameterizes a collaborator set.
type Options struct {
	Logger *log.Logger
	DB     DBOptions

	// StartupGrace is how long Deploy waits for the server to come up
	// before returning its controller.
	StartupGrace time.Duration
}

// Set is one wired collection of collaborator implementations.
type Set struct {
	logger *log.Logger
	db     DBOptions
	grace  time.Duration
}

func New(opts Options) *Set {
	if opts.Logger == nil {
		opts.Logger = &log.DefaultLogger
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 300 * time.Millisecond
	}
	if opts.DB.MaxIdleConns <= 0 {
		opts.DB.MaxIdleConns = 2
	}
	if opts.DB.MaxOpenConns <= 0 {
		opts.DB.MaxOpenConns = 10
	}
	return &Set{logger: opts.Logger, db: opts.DB, grace: opts.StartupGrace}
}

// Wire exposes the set as evaluator entry points.
func (s *Set) Wire() evaluator.Adapters {
	return evaluator.Adapters{
		Connect:  s.Connect,
		Frame:    s.Frame,
		AutoML:   s.AutoML,
		Deploy:   s.Deploy,
		Undeploy: s.Undeploy,
	}
}

// Defaults wires a collaborator set with default options.
func Defaults(logger *log.Logger) evaluator.Adapters {
	return New(Options{Logger: logger}).Wire()
}
