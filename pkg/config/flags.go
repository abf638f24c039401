package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --listen
// on both "deepgate serve" and "deepgateproxy").
type Flag struct {
	// Name is the long flag name (e.g. "base-url").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "upstream.base_url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen        = "listen"
	FlagAPIListen     = "api-listen"
	FlagBaseURL       = "base-url"
	FlagModel         = "model"
	FlagInsecure      = "insecure"
	FlagUsageDriver   = "usage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagLogFile       = "log-file"
	FlagLogJSON       = "log-json"
	FlagGatewayTarget = "gateway-target"
	FlagAPITarget     = "api-target"
)

// Registry is the FlagSet shared by every deepgate command.
var Registry = FlagSet{
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "gateway.listen", Description: "Address for the gateway to listen on"},
	FlagAPIListen:     {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the usage API server to listen on"},
	FlagBaseURL:       {Name: "base-url", Shorthand: "u", ViperKey: "upstream.base_url", Description: "DeepSeek API base URL"},
	FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "upstream.default_model", Description: "Default model when a request names none"},
	FlagInsecure:      {Name: "insecure", ViperKey: "upstream.insecure_skip_verify", Description: "Skip TLS certificate verification toward the upstream API"},
	FlagUsageDriver:   {Name: "usage-driver", ViperKey: "usage.driver", Description: "Usage record storage (memory, sqlite, postgres)"},
	FlagSQLite:        {Name: "sqlite", Shorthand: "s", ViperKey: "usage.sqlite_path", Description: "Path to the SQLite usage database"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "usage.postgres_dsn", Description: "PostgreSQL connection string for usage records"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers for usage events"},
	FlagLogFile:       {Name: "log-file", ViperKey: "log.file", Description: "Write rotating JSON logs to this file"},
	FlagLogJSON:       {Name: "log-json", ViperKey: "log.json", Description: "Emit JSON logs on stdout"},
	FlagGatewayTarget: {Name: "gateway-target", Shorthand: "g", ViperKey: "client.gateway_target", Description: "deepgate gateway URL"},
	FlagAPITarget:     {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "deepgate usage API URL"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
