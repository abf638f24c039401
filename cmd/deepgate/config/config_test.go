package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/deepgate/cmd/deepgate/config"
	"github.com/papercomputeco/deepgate/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := configcmder.NewConfigCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .deepgate/ config directory")
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(newCmd("set", "upstream.default_model", "deepseek-reasoner").Execute()).To(Succeed())

			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			value, err := cfger.GetConfigValue("upstream.default_model")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("deepseek-reasoner"))
		})

		It("masks secret values in its output", func() {
			Expect(newCmd("set", "upstream.api_key", "sk-secret-abcdef").Execute()).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("sk-secret-abcdef"))
			Expect(out.String()).To(ContainSubstring("cdef"))
		})

		It("rejects unknown keys", func() {
			err := newCmd("set", "invalid_key", "value").Execute()
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("requires exactly two arguments", func() {
			Expect(newCmd("set", "upstream.default_model").Execute()).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			Expect(newCmd("set").Execute()).To(HaveOccurred())
		})

		It("rejects invalid boolean values", func() {
			Expect(newCmd("set", "api.mcp", "maybe").Execute()).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(newCmd("set", "usage.driver", "sqlite").Execute()).To(Succeed())
			out.Reset()

			Expect(newCmd("get", "usage.driver").Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("sqlite"))
		})

		It("masks secret values", func() {
			Expect(newCmd("set", "usage.postgres_dsn", "postgres://user:hunter2@db/usage").Execute()).To(Succeed())
			out.Reset()

			Expect(newCmd("get", "usage.postgres_dsn").Execute()).To(Succeed())
			Expect(out.String()).NotTo(ContainSubstring("hunter2"))
		})

		It("rejects unknown keys", func() {
			Expect(newCmd("get", "invalid_key").Execute()).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(newCmd("get").Execute()).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("lists every key when no config exists", func() {
			Expect(newCmd("list").Execute()).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
		})

		It("shows values that were set", func() {
			Expect(newCmd("set", "events.kafka_topic", "chat-usage").Execute()).To(Succeed())
			out.Reset()

			Expect(newCmd("list").Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("chat-usage"))
		})

		It("rejects any arguments", func() {
			Expect(newCmd("list", "extra").Execute()).To(HaveOccurred())
		})
	})
})
