package config

const (
	defaultWorkDir         = "~/.cache/webmpipe/work"
	defaultLogDir          = "~/.local/share/webmpipe/logs"
	defaultHistoryPath     = "~/.local/share/webmpipe/history.db"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultOptions         = "-c:v libvpx-vp9 -b:v 1000k -crf 33 -c:a libopus -b:a 64k -auto-alt-ref 1 -lag-in-frames 25"
	defaultFirstPassSpeed  = "4"
	defaultTargetExtension = ".webm"
	defaultThreads         = 4
	defaultThreadsMin      = 1
	defaultThreadsMax      = 16
	defaultPoolWorkers     = 4
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:     defaultWorkDir,
			LogDir:      defaultLogDir,
			HistoryPath: defaultHistoryPath,
		},
		Encoder: Encoder{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			DefaultOptions:  defaultOptions,
			FirstPassSpeed:  defaultFirstPassSpeed,
			TargetExtension: defaultTargetExtension,
		},
		Threads: Threads{
			Default: defaultThreads,
			Min:     defaultThreadsMin,
			Max:     defaultThreadsMax,
		},
		Pool: Pool{
			Workers: defaultPoolWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
		},
	}
}
