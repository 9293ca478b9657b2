package cli

import "time"

// StringFlag is a flag parsed as a string. When the flag is not set on the
// command line, the first environment variable of EnvVars that is defined
// gives its value.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag StringFlag) Flag() {}

// PathFlag is a string flag holding a file path. A relative path is resolved
// against the working directory of the caller before it reaches the daemon.
//
// - implements cli.Flag
type PathFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag PathFlag) Flag() {}

// StringSliceFlag is a flag that can be repeated to build a list of strings.
//
// - implements cli.Flag
type StringSliceFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    []string
}

// Flag implements cli.Flag.
func (flag StringSliceFlag) Flag() {}

// DurationFlag is a flag parsed as a duration, like "10s".
//
// - implements cli.Flag
type DurationFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    time.Duration
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag DurationFlag) Flag() {}

// IntFlag is a flag parsed as an integer.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    int
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag IntFlag) Flag() {}

// BoolFlag is a switch.
//
// - implements cli.Flag
type BoolFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    bool
	EnvVars  []string
}

// Flag implements cli.Flag.
func (flag BoolFlag) Flag() {}
