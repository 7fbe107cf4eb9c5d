package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Options holds daemon settings resolved from the environment.
type Options struct {
	Home       string `env:"SQUADOPS_HOME"`
	ListenAddr string `env:"SQUADOPS_LISTEN" envDefault:"127.0.0.1:8440"`

	// SteamCMD binary used by deploy/update tasks.
	SteamCMD string `env:"SQUADOPS_STEAMCMD" envDefault:"steamcmd"`
	// Steam application id of the dedicated server to install.
	SteamAppID int `env:"SQUADOPS_APP_ID" envDefault:"403240"`

	// Delay between spawning a server process and the first RCON
	// connect attempt. The server needs time to open its control port.
	ConnectGrace time.Duration `env:"SQUADOPS_CONNECT_GRACE" envDefault:"20s"`
	// Delay between stop and start during a restart.
	RestartSettle time.Duration `env:"SQUADOPS_RESTART_SETTLE" envDefault:"5s"`
	// How long finished tasks and their buffered events are kept.
	TaskRetention time.Duration `env:"SQUADOPS_TASK_RETENTION" envDefault:"15m"`
}

// LoadOptions parses daemon options from the environment.
func LoadOptions() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return opts, nil
}
