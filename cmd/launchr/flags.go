package main

// Flag structs decouple cobra from the command logic for testing.

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags overrides selected config keys for one launch.
type RunFlags struct {
	ConfigPath    string
	WorkDir       string
	NoWait        bool // skip the final keypress prompt
	MetricsListen string
}

type ConfigFlags struct {
	ConfigPath string
}

type HistoryFlags struct {
	ConfigPath string
	DSN        string
	Limit      int
}
