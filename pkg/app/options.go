package app

import (
	cliflag "github.com/kart-io/docchat/pkg/app/cliflag"
)

// CliOptions is the interface for CLI options.
// Any options struct implementing this interface can be used with App.
type CliOptions interface {
	// Flags returns the command line flags grouped by section name.
	Flags() cliflag.NamedFlagSets
	// Complete completes the options with defaults.
	Complete() error
	// Validate validates the options.
	Validate() error
}

// CompletableOptions is an optional interface for options that need completion.
type CompletableOptions interface {
	Complete() error
}

// ValidatableOptions is an optional interface for options that need validation.
type ValidatableOptions interface {
	Validate() error
}

// PrintableOptions is an optional interface for options that can print themselves.
type PrintableOptions interface {
	String() string
}
