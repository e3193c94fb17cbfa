package config

import "github.com/kelseyhightower/envconfig"

type AdminConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// URL of the dispatcher's run endpoint, used to proxy "test now".
	DispatcherURL string `envconfig:"DISPATCHER_URL"`
}

type DispatcherConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8081"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Batch shape
	BatchSize           int `envconfig:"BATCH_SIZE" default:"25"`
	DispatchConcurrency int `envconfig:"DISPATCH_CONCURRENCY" default:"4"`

	// Claim staleness: an "attempting" message older than this is considered
	// abandoned by a crashed run and may be reclaimed.
	ClaimStaleAfterSec int `envconfig:"CLAIM_STALE_AFTER_SEC" default:"300"`

	// Transport call budget per attempt.
	SendTimeoutSec int `envconfig:"SEND_TIMEOUT_SEC" default:"10"`

	// How often the schedule loop re-reads scheduler config and checks
	// whether a tick is due.
	ScheduleTickSec int `envconfig:"SCHEDULE_TICK_SEC" default:"15"`

	// Per-provider rate limiting
	ProviderRPS   float64 `envconfig:"PROVIDER_RPS" default:"10"`
	ProviderBurst int     `envconfig:"PROVIDER_BURST" default:"20"`
}

func LoadAdmin() AdminConfig {
	var cfg AdminConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadDispatcher() DispatcherConfig {
	var cfg DispatcherConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
