// Package kctx provides a context type that carries a structured logger
// alongside the standard cancellation/deadline machinery, so call chains
// never have to thread a *logrus.Entry separately from a context.Context.
package kctx

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context extends context.Context with a contextual logger.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background returns an empty Context with a default logger.
func Background() *Context {
	return &Context{
		Context: context.Background(),
		Log:     logrus.NewEntry(logrus.StandardLogger()),
	}
}

// New wraps an existing context.Context with the supplied logger.
func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{Context: ctx, Log: log}
}

// WithCancel mirrors context.WithCancel, preserving the logger.
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithTimeout mirrors context.WithTimeout, preserving the logger.
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithLogField returns a copy of parent with key=val added to the logger.
func WithLogField(parent *Context, key string, val interface{}) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithField(key, val)}
}

// WithLogFields returns a copy of parent with fields added to the logger.
func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithFields(fields)}
}

// ErrGroup returns an errgroup.Group bound to a derived Context, analogous
// to errgroup.WithContext.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goCtx := errgroup.WithContext(ctx)
	return group, &Context{Context: goCtx, Log: ctx.Log}
}
