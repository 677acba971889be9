// Package middleware provides decorators around eviction policies and result sinks.
// This package includes logging middleware that wraps a policy to provide
// execution time logging and method call tracing for debugging and monitoring purposes.
package middleware

import (
	"time"

	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// Logger describes a logging interface allowing to implement different external, or custom logger.
// Tested with logrus, but should work with any other logger that matches the interface.
type Logger interface {
	Printf(format string, v ...any)
}

// LoggingMiddleware is a middleware that logs every policy call and the time it took.
// Must implement the eviction.Policy interface.
type LoggingMiddleware struct {
	next   eviction.Policy
	logger Logger
}

// NewLoggingMiddleware returns a new LoggingMiddleware.
func NewLoggingMiddleware(next eviction.Policy, logger Logger) eviction.Policy {
	return &LoggingMiddleware{next: next, logger: logger}
}

// Consume logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) Consume(pg page.Page) {
	defer func(begin time.Time) {
		mw.logger.Printf("%s: method Consume took: %s", mw.next.Name(), time.Since(begin))
	}(time.Now())

	mw.logger.Printf("%s: Consume method called with page: %s", mw.next.Name(), pg)

	mw.next.Consume(pg)
}

// IsPageFault logs the outcome of the lookup.
func (mw LoggingMiddleware) IsPageFault(pg page.Page) bool {
	fault := mw.next.IsPageFault(pg)

	mw.logger.Printf("%s: IsPageFault(%s) = %t", mw.next.Name(), pg, fault)

	return fault
}

// TemperatureOrder logs the time it takes to execute the next middleware.
func (mw LoggingMiddleware) TemperatureOrder() []page.Page {
	defer func(begin time.Time) {
		mw.logger.Printf("%s: method TemperatureOrder took: %s", mw.next.Name(), time.Since(begin))
	}(time.Now())

	return mw.next.TemperatureOrder()
}

// Name returns the name of the wrapped policy.
func (mw LoggingMiddleware) Name() string { return mw.next.Name() }

// Len returns the resident count of the wrapped policy.
func (mw LoggingMiddleware) Len() int { return mw.next.Len() }

// Capacity returns the capacity of the wrapped policy.
func (mw LoggingMiddleware) Capacity() int { return mw.next.Capacity() }
