package config

const (
	defaultDataDir            = "~/.local/share/adforge/data"
	defaultLogDir             = "~/.local/share/adforge/logs"
	defaultLockFile           = "~/.local/share/adforge/adforged.lock"
	defaultAPIBind            = "127.0.0.1:7319"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultRetryBudget        = 2
	defaultMaxRetryBudget     = 5
	defaultTone               = "energetic"
	defaultVideoModel         = "reel-motion-v2"
	defaultRedisAddr          = "127.0.0.1:6379"
	defaultTaskTimeoutMinutes = 20
	defaultRetentionHours     = 24
	defaultWorkerConcurrency  = 4
	defaultPollSeconds        = 2
	defaultBackoffCeiling     = 30
	defaultBackoffMultiplier  = 2.0
	defaultDegradedThreshold  = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			LockFile: defaultLockFile,
			APIBind:  defaultAPIBind,
		},
		Pipeline: Pipeline{
			DefaultRetryBudget: defaultRetryBudget,
			MaxRetryBudget:     defaultMaxRetryBudget,
			DefaultTone:        defaultTone,
			DefaultVideoModel:  defaultVideoModel,
		},
		Dispatch: Dispatch{
			Enabled:          false,
			RedisAddr:        defaultRedisAddr,
			TaskTimeoutMin:   defaultTaskTimeoutMinutes,
			RetentionHours:   defaultRetentionHours,
			WorkerConcurrent: defaultWorkerConcurrency,
		},
		Watch: Watch{
			PollIntervalSeconds:   defaultPollSeconds,
			BackoffCeilingSeconds: defaultBackoffCeiling,
			BackoffMultiplier:     defaultBackoffMultiplier,
			DegradedThreshold:     defaultDegradedThreshold,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
