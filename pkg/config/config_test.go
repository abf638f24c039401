package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[gateway]
listen = ":9000"
prefix = ""

[upstream]
base_url = "https://example.test/v1"
default_model = "deepseek-reasoner"
insecure_skip_verify = true

[defaults]
temperature = 0.7
max_tokens = 2048
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gateway.Listen).To(Equal(":9000"))
			Expect(cfg.Gateway.Prefix).To(BeEmpty())
			Expect(cfg.Upstream.BaseURL).To(Equal("https://example.test/v1"))
			Expect(cfg.Upstream.DefaultModel).To(Equal("deepseek-reasoner"))
			Expect(cfg.Upstream.InsecureSkipVerify).To(BeTrue())
			Expect(cfg.Defaults.Temperature).To(HaveValue(Equal(0.7)))
			Expect(cfg.Defaults.MaxTokens).To(Equal(2048))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `[usage]
driver = "sqlite"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Usage.Driver).To(Equal("sqlite"))
			Expect(cfg.Gateway.Listen).To(Equal(defaults.Gateway.Listen))
			Expect(cfg.Gateway.Prefix).To(Equal(defaults.Gateway.Prefix))
			Expect(cfg.Upstream.BaseURL).To(Equal(defaults.Upstream.BaseURL))
			Expect(cfg.Upstream.Timeout).To(Equal(defaults.Upstream.Timeout))
			Expect(cfg.Events.KafkaTopic).To(Equal(defaults.Events.KafkaTopic))
			Expect(cfg.Client.GatewayTarget).To(Equal(defaults.Client.GatewayTarget))
		})

		It("returns error for malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[gateway\nlisten ="), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing config TOML"))
		})

		It("returns error for unsupported config version", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 7\n"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 7"))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk with owner-only permissions", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Upstream.APIKey = "sk-test"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Upstream.APIKey).To(Equal("sk-test"))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SaveConfig(nil)).To(MatchError(ContainSubstring("nil config")))
		})

		It("round-trips every field", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			temperature := 0.2
			cfg := &config.Config{
				Gateway:  config.GatewayConfig{Listen: ":7000", Prefix: "/ds"},
				API:      config.APIConfig{Listen: ":7001", MCP: true, PProf: true},
				Upstream: config.UpstreamConfig{BaseURL: "http://up", APIKey: "k", DefaultModel: "m", InsecureSkipVerify: true, Timeout: "30s"},
				Defaults: config.DefaultsConfig{Temperature: &temperature, MaxTokens: 64},
				Usage:    config.UsageConfig{Driver: "postgres", SQLitePath: "/tmp/u.db", PostgresDSN: "postgres://x"},
				Events:   config.EventsConfig{KafkaBrokers: "a:9092,b:9092", KafkaTopic: "t"},
				Log:      config.LogConfig{File: "/tmp/deepgate.log", JSON: true},
				Client:   config.ClientConfig{GatewayTarget: "http://g", APITarget: "http://a"},
			}
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string key", func() {
			Expect(c.SetConfigValue("upstream.default_model", "deepseek-reasoner")).To(Succeed())

			v, err := c.GetConfigValue("upstream.default_model")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("deepseek-reasoner"))
		})

		It("sets numeric and bool keys", func() {
			Expect(c.SetConfigValue("defaults.temperature", "0.5")).To(Succeed())
			Expect(c.SetConfigValue("defaults.max_tokens", "4096")).To(Succeed())
			Expect(c.SetConfigValue("api.pprof", "true")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Defaults.Temperature).To(HaveValue(Equal(0.5)))
			Expect(cfg.Defaults.MaxTokens).To(Equal(4096))
			Expect(cfg.API.PProf).To(BeTrue())
		})

		It("keeps a temperature of 0 instead of the default", func() {
			Expect(c.SetConfigValue("defaults.temperature", "0")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Defaults.Temperature).To(HaveValue(Equal(0.0)))

			v, err := c.GetConfigValue("defaults.temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("0"))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("gateway.listen", ":9999")).To(Succeed())
			Expect(c.SetConfigValue("usage.driver", "sqlite")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gateway.Listen).To(Equal(":9999"))
			Expect(cfg.Usage.Driver).To(Equal("sqlite"))
		})

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("proxy.provider", "openai")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		DescribeTable("rejects invalid values",
			func(key, value, msg string) {
				err := c.SetConfigValue(key, value)
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("non-numeric temperature", "defaults.temperature", "warm", "invalid float"),
			Entry("temperature above range", "defaults.temperature", "2.5", "out of range"),
			Entry("negative max tokens", "defaults.max_tokens", "-1", "must be positive"),
			Entry("bad bool", "api.mcp", "maybe", "invalid boolean"),
			Entry("bad duration", "upstream.timeout", "soon", "invalid duration"),
			Entry("unknown driver", "usage.driver", "mysql", "unknown usage driver"),
		)
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("upstream.base_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("https://api.deepseek.com/v1"))

			v, err = c.GetConfigValue("defaults.max_tokens")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("1000"))
		})

		It("returns empty string for key with no default", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("upstream.api_key")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nonexistent")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("config keys", func() {
	It("returns keys in TOML section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys[0]).To(Equal("gateway.listen"))
		Expect(keys).To(ContainElements("upstream.api_key", "usage.driver", "events.kafka_brokers", "client.api_target"))
		Expect(config.ValidConfigKeys()).To(Equal(keys))
	})

	It("validates key names", func() {
		Expect(config.IsValidConfigKey("gateway.prefix")).To(BeTrue())
		Expect(config.IsValidConfigKey("proxy.listen")).To(BeFalse())
		Expect(config.IsValidConfigKey("listen")).To(BeFalse())
	})

	It("marks credentials as secret", func() {
		Expect(config.IsSecretKey("upstream.api_key")).To(BeTrue())
		Expect(config.IsSecretKey("usage.postgres_dsn")).To(BeTrue())
		Expect(config.IsSecretKey("upstream.base_url")).To(BeFalse())
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns defaults for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("keeps explicit false over a true default", func() {
		cfg, err := config.ParseConfigTOML([]byte("[api]\nmcp = false\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.MCP).To(BeFalse())
	})
})

var _ = Describe("UpstreamConfig", func() {
	It("parses the timeout", func() {
		u := config.UpstreamConfig{Timeout: "45s"}
		Expect(u.TimeoutDuration().Seconds()).To(Equal(45.0))
	})

	It("falls back to the default timeout on bad input", func() {
		u := config.UpstreamConfig{Timeout: "bogus"}
		Expect(u.TimeoutDuration().Minutes()).To(Equal(5.0))
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-viper-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := "[gateway]\nlisten = \":6060\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("gateway.listen")).To(Equal(":6060"))
		Expect(v.GetString("api.listen")).To(Equal(":8081"))
	})

	It("keeps a configured temperature of 0", func() {
		data := "[defaults]\ntemperature = 0.0\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Defaults.Temperature).To(HaveValue(Equal(0.0)))
	})

	It("env vars take precedence over config file values", func() {
		data := "[usage]\ndriver = \"sqlite\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		Expect(os.Setenv("DEEPGATE_USAGE_DRIVER", "postgres")).To(Succeed())
		DeferCleanup(os.Unsetenv, "DEEPGATE_USAGE_DRIVER")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FromViper(v).Usage.Driver).To(Equal("postgres"))
	})
})

var _ = Describe("flag registry", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-flags-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("binds cobra flags to viper keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Registry, config.FlagListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagListen})

		Expect(v.GetString("gateway.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := "[upstream]\nbase_url = \"http://local:1234\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var baseURL string
		config.AddStringFlag(cmd, config.Registry, config.FlagBaseURL, &baseURL)

		config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagBaseURL})

		Expect(v.GetString("upstream.base_url")).To(Equal("http://local:1234"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Registry, []string{"nonexistent"})

		Expect(v.GetString("gateway.listen")).To(Equal(":8080"))
	})

	It("pulls name, shorthand, default, and description from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Registry, config.FlagGatewayTarget, &target)

		f := cmd.Flags().Lookup("gateway-target")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("g"))
		Expect(f.Usage).To(Equal("deepgate gateway URL"))
		Expect(f.DefValue).To(Equal("http://localhost:8080"))
	})

	It("registers bool flags with their defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		var insecure bool
		config.AddBoolFlag(cmd, config.Registry, config.FlagInsecure, &insecure)

		f := cmd.Flags().Lookup("insecure")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("false"))
	})
})
