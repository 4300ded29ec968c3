// Package middleware provides observability middleware for session
// dispatch: Prometheus metrics and OpenTelemetry tracing around every
// API and event method invocation.
//
// Middleware is wired at session construction:
//
//	sess := session.New(session.Options{
//	    ...
//	    Middleware: []session.Middleware{
//	        middleware.Prometheus(),
//	        middleware.OpenTelemetry(),
//	    },
//	})
//
// Expose the metrics endpoint with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware
