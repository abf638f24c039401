package authcmder_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/deepgate/cmd/deepgate/auth"
	"github.com/papercomputeco/deepgate/pkg/config"
	"github.com/papercomputeco/deepgate/pkg/credentials"
)

var _ = Describe("Auth Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	newCmd := func(stdin string, args ...string) *cobra.Command {
		cmd := authcmder.NewAuthCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .deepgate/ config directory")
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd
	}

	storedKey := func() string {
		mgr, err := credentials.NewManager(tmpDir)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		key, err := mgr.GetKey(credentials.ProviderDeepSeek)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return key
	}

	useUpstream := func(handler http.HandlerFunc) {
		server := httptest.NewServer(handler)
		DeferCleanup(server.Close)

		cfger, err := config.NewConfiger(tmpDir)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		ExpectWithOffset(1, cfger.SetConfigValue("upstream.base_url", server.URL)).To(Succeed())
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		GinkgoT().Setenv(config.APIKeyEnv, "")
	})

	Describe("NewAuthCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has the --no-verify, --remove and --show flags", func() {
			cmd := authcmder.NewAuthCmd()
			for _, name := range []string{"no-verify", "remove", "show"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
			}
		})
	})

	It("stores a piped key without verification", func() {
		Expect(newCmd("sk-piped-key-1234\n", "--no-verify").Execute()).To(Succeed())
		Expect(storedKey()).To(Equal("sk-piped-key-1234"))
	})

	It("rejects an empty key", func() {
		err := newCmd("   \n", "--no-verify").Execute()
		Expect(err).To(MatchError(ContainSubstring("cannot be empty")))
	})

	It("stores a key the upstream accepts", func() {
		var auth string
		useUpstream(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
		})

		Expect(newCmd("sk-good-key-5678\n").Execute()).To(Succeed())
		Expect(auth).To(Equal("Bearer sk-good-key-5678"))
		Expect(storedKey()).To(Equal("sk-good-key-5678"))
	})

	It("does not store a key the upstream rejects", func() {
		useUpstream(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Authentication Fails"}}`))
		})

		err := newCmd("sk-bad-key-0000\n").Execute()
		Expect(err).To(MatchError(ContainSubstring("rejected")))
		Expect(storedKey()).To(BeEmpty())
	})

	It("shows the stored key masked", func() {
		Expect(newCmd("sk-1234567890abcdef\n", "--no-verify").Execute()).To(Succeed())
		out.Reset()

		Expect(newCmd("", "--show").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("sk-...cdef"))
		Expect(out.String()).NotTo(ContainSubstring("1234567890"))
	})

	It("removes the stored key", func() {
		Expect(newCmd("sk-1234567890abcdef\n", "--no-verify").Execute()).To(Succeed())
		Expect(newCmd("", "--remove").Execute()).To(Succeed())
		Expect(storedKey()).To(BeEmpty())
	})
})
