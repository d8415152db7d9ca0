package config

const (
	defaultLogDir                = "~/.local/share/remux/logs"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFmpegTimeoutSeconds  = 3600
	defaultInstallTimeoutSeconds = 900
	defaultNotifyRequestTimeout  = 10
	defaultHistoryKeepLast       = 200
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			TimeoutSeconds: defaultFFmpegTimeoutSeconds,
		},
		Install: Install{
			Enabled:        true,
			TimeoutSeconds: defaultInstallTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		History: History{
			Enabled:  true,
			KeepLast: defaultHistoryKeepLast,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
