// Package logger builds the service's zap loggers.
package logger

import "go.uber.org/zap"

// New returns a zap logger configured for the given environment.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNamed returns an environment-appropriate logger named after the service.
func NewNamed(env, name string) (*zap.Logger, error) {
	l, err := New(env)
	if err != nil {
		return nil, err
	}
	return l.Named(name), nil
}
