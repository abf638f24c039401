package relay_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
	"github.com/papercomputeco/deepgate/pkg/logger"
	"github.com/papercomputeco/deepgate/pkg/relay"
)

type staticKey string

func (k staticKey) APIKey() string { return string(k) }

// sseUpstream serves the given raw lines, flushing after each one.
func sseUpstream(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			flusher.Flush()
		}
	}
}

func drain(s *relay.Stream) []llm.StreamEvent {
	var events []llm.StreamEvent
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		Expect(err).NotTo(HaveOccurred())
		events = append(events, ev)
	}
}

func finish(reason string) *string { return &reason }

var _ = Describe("Relay", func() {
	var (
		handler  http.HandlerFunc
		hits     atomic.Int32
		upstream *httptest.Server
		client   *deepseek.Client
		r        *relay.Relay
		req      *llm.ChatRequest
	)

	BeforeEach(func() {
		hits.Store(0)
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			hits.Add(1)
			handler(w, req)
		}))
		DeferCleanup(upstream.Close)

		client = deepseek.New(deepseek.Options{
			BaseURL:     upstream.URL,
			Credentials: staticKey("sk-test"),
		})
		r = relay.New(client, logger.Nop())
		req = &llm.ChatRequest{
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			Model:    "deepseek-chat",
		}
	})

	It("re-frames every data frame and ends on [DONE]", func() {
		handler = sseUpstream(
			`data: {"model":"deepseek-chat","choices":[{"delta":{"role":"assistant","content":""},"finish_reason":null}]}`,
			": keep-alive",
			"",
			`data: {"choices":[{"delta":{"content":"Hel"},"finish_reason":null}]}`,
			`event: ignored`,
			`data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
			"data: [DONE]",
			`data: {"choices":[{"delta":{"content":"after done"}}]}`,
		)

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s.State()).To(Equal(relay.Streaming))

		Expect(drain(s)).To(Equal([]llm.StreamEvent{
			{Content: ""},
			{Content: "Hel"},
			{Content: "lo", FinishReason: finish("stop")},
			{Content: "", FinishReason: finish("stop")},
		}))
		Expect(s.State()).To(Equal(relay.Completed))

		sum := s.Summary()
		Expect(sum.Frames).To(Equal(4))
		Expect(sum.SkippedLines).To(Equal(2))
		Expect(sum.Outcome).To(Equal(relay.Completed))
		Expect(sum.FinishReason).To(Equal("stop"))
		Expect(sum.ContentLength).To(Equal(5))
		Expect(sum.Usage).NotTo(BeNil())
		Expect(sum.Usage.TotalTokens).To(Equal(6))
		Expect(sum.Model).To(Equal("deepseek-chat"))

		Expect(s.Close()).To(Succeed())
		Expect(s.State()).To(Equal(relay.Closed))
		Expect(s.Summary().Outcome).To(Equal(relay.Completed))
	})

	It("substitutes a marker for undecodable frames and keeps streaming", func() {
		handler = sseUpstream(
			`data: {"choices":[{"delta":{"content":"a"}}]}`,
			`data: {not json`,
			`data: {"choices":[{"delta":{"content":"b"}}]}`,
			"data: [DONE]",
		)

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		ev, err := s.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Content).To(Equal("a"))

		ev, err = s.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(llm.StreamEvent{Content: llm.ParseErrorMarker}))
		Expect(s.State()).To(Equal(relay.ParseDegraded))

		ev, err = s.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Content).To(Equal("b"))
		Expect(s.State()).To(Equal(relay.Streaming))

		Expect(drain(s)).To(HaveLen(1))
		Expect(s.Summary().ParseErrors).To(Equal(1))
	})

	It("synthesizes an error event when upstream ends without [DONE]", func() {
		handler = sseUpstream(`data: {"choices":[{"delta":{"content":"partial"}}]}`)

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(drain(s)).To(Equal([]llm.StreamEvent{
			{Content: "partial"},
			{Content: "", FinishReason: finish(llm.FinishError)},
		}))
		Expect(s.State()).To(Equal(relay.UpstreamFailed))
		Expect(s.Summary().FinishReason).To(Equal("error"))

		_, err = s.Recv()
		Expect(err).To(MatchError(io.EOF))
	})

	It("yields the error event for an empty stream", func() {
		handler = sseUpstream()

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(drain(s)).To(Equal([]llm.StreamEvent{llm.ErrorEvent()}))
	})

	It("returns an UpstreamHTTPError and yields nothing on non-2xx", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
		}

		s, err := r.Open(context.Background(), req)

		var httpErr *deepseek.UpstreamHTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(httpErr.StatusCode).To(Equal(http.StatusTooManyRequests))

		Expect(s.State()).To(Equal(relay.Closed))
		Expect(s.Summary().Outcome).To(Equal(relay.UpstreamFailed))
		Expect(drain(s)).To(BeEmpty())
	})

	It("returns an UpstreamNetworkError when upstream is unreachable", func() {
		upstream.Close()

		s, err := r.Open(context.Background(), req)

		var netErr *deepseek.UpstreamNetworkError
		Expect(errors.As(err, &netErr)).To(BeTrue())
		Expect(s.Summary().Outcome).To(Equal(relay.UpstreamFailed))
	})

	It("fails with a ConfigError before connecting when no key is configured", func() {
		client.Update(deepseek.Options{BaseURL: upstream.URL, Credentials: staticKey("")})

		s, err := r.Open(context.Background(), req)

		var cfgErr *deepseek.ConfigError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(hits.Load()).To(BeZero())
		Expect(s.Summary().Outcome).To(Equal(relay.Idle))
		Expect(drain(s)).To(BeEmpty())
	})

	It("forces stream mode without mutating the caller's request", func() {
		var sawStream bool
		handler = func(w http.ResponseWriter, hr *http.Request) {
			body, _ := io.ReadAll(hr.Body)
			sawStream = strings.Contains(string(body), `"stream":true`)
			sseUpstream("data: [DONE]")(w, hr)
		}

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		drain(s)

		Expect(sawStream).To(BeTrue())
		Expect(req.Stream).To(BeFalse())
	})

	It("closes the upstream connection when the consumer cancels", func() {
		upstreamGone := make(chan struct{})
		handler = func(w http.ResponseWriter, hr *http.Request) {
			sseUpstream(`data: {"choices":[{"delta":{"content":"first"}}]}`)(w, hr)
			<-hr.Context().Done()
			close(upstreamGone)
		}

		ctx, cancel := context.WithCancel(context.Background())
		s, err := r.Open(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		ev, err := s.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Content).To(Equal("first"))

		cancel()

		ev, err = s.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(llm.ErrorEvent()))
		Expect(s.Summary().Cancelled).To(BeTrue())

		Eventually(upstreamGone).WithTimeout(2 * time.Second).Should(BeClosed())
		Expect(s.Close()).To(Succeed())
	})

	It("unblocks a pending Recv on Close", func() {
		release := make(chan struct{})
		DeferCleanup(func() { close(release) })
		handler = func(w http.ResponseWriter, hr *http.Request) {
			sseUpstream()(w, hr)
			select {
			case <-release:
			case <-hr.Context().Done():
			}
		}

		s, err := r.Open(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan llm.StreamEvent, 1)
		go func() {
			defer GinkgoRecover()
			ev, _ := s.Recv()
			done <- ev
		}()

		time.Sleep(50 * time.Millisecond)
		Expect(s.Close()).To(Succeed())
		Expect(s.Close()).To(Succeed())

		Eventually(done).WithTimeout(2 * time.Second).Should(Receive())
		Expect(s.State()).To(Equal(relay.Closed))
		Expect(s.Summary().Outcome).To(Equal(relay.UpstreamFailed))
		Expect(s.Summary().Cancelled).To(BeTrue())
	})
})

var _ = Describe("State", func() {
	DescribeTable("String",
		func(s relay.State, want string) {
			Expect(s.String()).To(Equal(want))
		},
		Entry("idle", relay.Idle, "idle"),
		Entry("connecting", relay.Connecting, "connecting"),
		Entry("streaming", relay.Streaming, "streaming"),
		Entry("parse_degraded", relay.ParseDegraded, "parse_degraded"),
		Entry("completed", relay.Completed, "completed"),
		Entry("upstream_failed", relay.UpstreamFailed, "upstream_failed"),
		Entry("closed", relay.Closed, "closed"),
	)

	It("marks terminal states", func() {
		Expect(relay.Completed.Terminal()).To(BeTrue())
		Expect(relay.UpstreamFailed.Terminal()).To(BeTrue())
		Expect(relay.ParseDegraded.Terminal()).To(BeFalse())
	})
})
