package core

// Config is runtime configuration for the CLI.
type Config struct {
	Broker    string
	APIKey    string
	Identity  string
	TopicBase string
	Aliases   map[string]string
	Defaults  Defaults
}

// Defaults defines default selector values.
type Defaults struct {
	Player   string
	Library  string
	Playlist string
}
