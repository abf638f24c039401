package proxy

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
	"github.com/papercomputeco/deepgate/pkg/logger"
	"github.com/papercomputeco/deepgate/pkg/storage/inmemory"
	"github.com/papercomputeco/deepgate/proxy/worker"
)

var _ = Describe("Client disconnect during a stream", func() {
	var (
		up             *upstream
		upstreamClosed chan struct{}
		p              *Proxy
		pool           *worker.Pool
		baseURL        string
	)

	BeforeEach(func() {
		upstreamClosed = make(chan struct{})

		// One frame, then stall until the gateway drops the request.
		up = newUpstream(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `data: {"model":"deepseek-chat","choices":[{"delta":{"content":"a"},"finish_reason":null}]}`+"\n\n")
			w.(http.Flusher).Flush()

			select {
			case <-r.Context().Done():
				close(upstreamClosed)
			case <-time.After(10 * time.Second):
			}
		})

		client := deepseek.New(deepseek.Options{
			BaseURL:     up.server.URL,
			Timeout:     5 * time.Second,
			Credentials: &testKeys{key: "sk-test"},
		})

		var err error
		pool, err = worker.NewPool(&worker.Config{Driver: inmemory.NewDriver(), Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		p, err = New(Config{KeepAliveInterval: 50 * time.Millisecond}, client, &testKeys{key: "sk-test"}, pool, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = p.RunWithListener(ln) }()
		baseURL = "http://" + ln.Addr().String()
	})

	AfterEach(func() {
		_ = p.Close()
		pool.Close()
		up.server.Close()
	})

	It("writes keep-alive comments while upstream is idle", func() {
		resp, err := http.Post(baseURL+"/stream", "application/json", strings.NewReader(userChat))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		reader := bufio.NewReader(resp.Body)
		Expect(readLineWith(reader, `"content":"a"`)).To(Succeed())
		Expect(readLineWith(reader, ": keep-alive")).To(Succeed())
	})

	It("releases the upstream connection promptly after the client disconnects", func() {
		resp, err := http.Post(baseURL+"/stream", "application/json", strings.NewReader(userChat))
		Expect(err).NotTo(HaveOccurred())

		reader := bufio.NewReader(resp.Body)
		Expect(readLineWith(reader, `"content":"a"`)).To(Succeed())

		// Closing an unfinished chunked body drops the TCP connection.
		Expect(resp.Body.Close()).To(Succeed())

		Eventually(upstreamClosed, 3*time.Second).Should(BeClosed())
	})
})

// readLineWith reads lines until one contains substr.
func readLineWith(r *bufio.Reader, substr string) error {
	for {
		line, err := r.ReadString('\n')
		if strings.Contains(line, substr) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
