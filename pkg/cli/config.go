package cli

// Config holds the global flags shared by every command
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	NoColor     bool
	Version     string
}

// NewConfig creates a CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Version:     "dev",
	}
}
