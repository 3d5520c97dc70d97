package config

const (
	defaultConnectAttempts = 30
	defaultConnectDelayMS  = 100
	defaultDialTimeoutMS   = 100
	defaultAutostart       = true
	defaultShutdownGrace   = 5000
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultClientLogLevel  = "warn"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Client: Client{
			ConnectAttempts: defaultConnectAttempts,
			ConnectDelayMS:  defaultConnectDelayMS,
			DialTimeoutMS:   defaultDialTimeoutMS,
			Autostart:       defaultAutostart,
		},
		Daemon: Daemon{
			ShutdownGraceMS: defaultShutdownGrace,
		},
		Logging: Logging{
			Format:      defaultLogFormat,
			Level:       defaultLogLevel,
			ClientLevel: defaultClientLogLevel,
		},
	}
}
