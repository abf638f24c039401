package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepgate/api/mcp"
	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/logger"
	"github.com/papercomputeco/deepgate/pkg/storage"
	"github.com/papercomputeco/deepgate/pkg/storage/inmemory"
)

// failingDriver fails every read.
type failingDriver struct{ storage.Driver }

func (failingDriver) List(context.Context, int) ([]*storage.Record, error) {
	return nil, errors.New("database is locked")
}

func (failingDriver) Summary(context.Context) (*storage.Summary, error) {
	return nil, errors.New("database is locked")
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
		ctx    context.Context
	)

	get := func(path string) *http.Response {
		resp, err := server.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		ExpectWithOffset(1, json.Unmarshal(body, out)).To(Succeed())
	}

	insert := func(model string, total int, at time.Time) {
		ExpectWithOffset(1, driver.Insert(ctx, &storage.Record{
			Model:       model,
			TotalTokens: total,
			Outcome:     "completed",
			CreatedAt:   at,
		})).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()

		var err error
		server, err = NewServer(Config{ListenAddr: ":0"}, driver, nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a storage driver", func() {
		_, err := NewServer(Config{}, nil, nil, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("storage driver is required")))
	})

	It("answers ping", func() {
		resp := get("/ping")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out string
		decode(resp, &out)
		Expect(out).To(Equal("pong"))
	})

	Describe("GET /usage", func() {
		BeforeEach(func() {
			base := time.Now().UTC().Add(-time.Hour)
			for i := range 3 {
				insert("deepseek-chat", 10*(i+1), base.Add(time.Duration(i)*time.Minute))
			}
		})

		It("returns records newest first with the default limit", func() {
			resp := get("/usage")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out UsageList
			decode(resp, &out)
			Expect(out.Limit).To(Equal(storage.DefaultListLimit))
			Expect(out.Count).To(Equal(3))
			Expect(out.Records[0].TotalTokens).To(Equal(30))
			Expect(out.Records[2].TotalTokens).To(Equal(10))
		})

		It("honours limit", func() {
			var out UsageList
			decode(get("/usage?limit=2"), &out)
			Expect(out.Records).To(HaveLen(2))
			Expect(out.Limit).To(Equal(2))
		})

		It("clamps limit to the maximum", func() {
			var out UsageList
			decode(get("/usage?limit=5000"), &out)
			Expect(out.Limit).To(Equal(storage.MaxListLimit))
		})

		DescribeTable("rejects a bad limit",
			func(limit string) {
				resp := get("/usage?limit=" + limit)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var out llm.ErrorResponse
				decode(resp, &out)
				Expect(out.Error).To(ContainSubstring("limit"))
			},
			Entry("zero", "0"),
			Entry("negative", "-3"),
			Entry("not a number", "ten"),
		)

		It("returns an empty list rather than null", func() {
			empty, err := NewServer(Config{}, inmemory.NewDriver(), nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, err := empty.App().Test(httptest.NewRequest(http.MethodGet, "/usage", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring(`"records":[]`))
		})
	})

	Describe("GET /usage/summary", func() {
		It("aggregates per model", func() {
			now := time.Now().UTC()
			insert("deepseek-chat", 10, now)
			insert("deepseek-chat", 5, now)
			insert("deepseek-reasoner", 7, now)

			var out storage.Summary
			decode(get("/usage/summary"), &out)
			Expect(out.Calls).To(Equal(int64(3)))
			Expect(out.TotalTokens).To(Equal(int64(22)))
			Expect(out.ByModel["deepseek-chat"].Calls).To(Equal(int64(2)))
		})
	})

	Context("when storage fails", func() {
		BeforeEach(func() {
			var err error
			server, err = NewServer(Config{}, failingDriver{}, nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns 500 without leaking the driver error", func() {
			for _, path := range []string{"/usage", "/usage/summary"} {
				resp := get(path)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var out llm.ErrorResponse
				decode(resp, &out)
				Expect(out.Error).NotTo(ContainSubstring("locked"))
			}
		})
	})

	It("returns JSON errors for unknown routes", func() {
		resp := get("/nope")
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

		var out llm.ErrorResponse
		decode(resp, &out)
		Expect(out.Error).NotTo(BeEmpty())
	})

	Describe("mounts", func() {
		It("serves pprof only when enabled", func() {
			Expect(get("/debug/pprof/cmdline").StatusCode).To(Equal(http.StatusNotFound))

			var err error
			server, err = NewServer(Config{PProf: true}, driver, nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(get("/debug/pprof/cmdline").StatusCode).To(Equal(http.StatusOK))
		})

		It("does not mount /mcp for a noop MCP server", func() {
			Expect(get("/mcp").StatusCode).To(Equal(http.StatusNotFound))

			mcpServer, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			server, err = NewServer(Config{}, driver, mcpServer, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(get("/mcp").StatusCode).To(Equal(http.StatusNotFound))
		})

		It("routes MCP requests to the handler", func() {
			mcpServer, err := mcp.NewServer(mcp.Config{
				Provider: stubProvider{},
				Driver:   driver,
				Logger:   logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			server, err = NewServer(Config{}, driver, mcpServer, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.App().Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			raw, _ := io.ReadAll(resp.Body)
			Expect(string(raw)).To(ContainSubstring("usage_summary"))
		})
	})
})
