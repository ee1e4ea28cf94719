// Package config resolves process configuration from environment
// variables and CLI flags, with CLI taking precedence, per spec.md §6.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved process-wide configuration. It is captured
// once at startup and never mutated afterward.
type Config struct {
	RemoteURL  string
	ReqTimeout time.Duration
	ReqLimit   int
	Port       int
}

const (
	defaultReqTimeoutSeconds = 10
	defaultReqLimit          = 100
	defaultPort              = 8000
)

// BindFlags registers the --timeout/--limit/--port flags on cmd, and
// binds them (plus the REMOTE_URL/REQ_TIMEOUT/REQ_LIMIT/PORT_NUMBER
// environment variables) into v, so that a later v.Get* call reflects
// CLI-over-env precedence automatically. The positional remote
// argument is not registered here; Resolve reads it from args.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Int("timeout", defaultReqTimeoutSeconds, "per-attempt transport timeout, seconds")
	cmd.Flags().Int("limit", defaultReqLimit, "admission ceiling, concurrent smart requests")
	cmd.Flags().Int("port", defaultPort, "listen port")

	_ = v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("limit", cmd.Flags().Lookup("limit"))
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	_ = v.BindEnv("timeout", "REQ_TIMEOUT")
	_ = v.BindEnv("limit", "REQ_LIMIT")
	_ = v.BindEnv("port", "PORT_NUMBER")
	_ = v.BindEnv("remote", "REMOTE_URL")

	v.SetDefault("timeout", defaultReqTimeoutSeconds)
	v.SetDefault("limit", defaultReqLimit)
	v.SetDefault("port", defaultPort)
}

// Resolve builds a Config from v and the positional remote argument
// (args[0] when present). It errors if no upstream URL was supplied
// by either the positional argument or REMOTE_URL.
func Resolve(v *viper.Viper, args []string) (Config, error) {
	remote := v.GetString("remote")
	if len(args) > 0 && args[0] != "" {
		remote = args[0]
	}
	if remote == "" {
		return Config{}, fmt.Errorf("config: remote upstream URL is required (positional arg or REMOTE_URL)")
	}

	return Config{
		RemoteURL:  remote,
		ReqTimeout: time.Duration(v.GetInt("timeout")) * time.Second,
		ReqLimit:   v.GetInt("limit"),
		Port:       v.GetInt("port"),
	}, nil
}
