// Package gateway provides the public API for embedding the transliteration
// gateway. This is the stable API for external consumers.
package gateway

import (
	"github.com/prooftamil/ime-gateway/internal/runtime"
)

// Gateway is the main entry point for running the gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithConfigFile("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Components
	WithEngine     = runtime.WithEngine
	WithUsageStore = runtime.WithUsageStore
	WithClock      = runtime.WithClock

	// Observability
	WithLogger   = runtime.WithLogger
	WithRegistry = runtime.WithRegistry
)
