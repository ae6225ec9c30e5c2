// Package middleware provides HTTP middleware for the ops listener.
//
// Access logging goes through the structured "http" component logger, and
// request counts and latencies are recorded as Prometheus metrics labelled
// by route template so job IDs never become label values.
package middleware
