package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepgate/pkg/llm"
)

var _ = Describe("ChatRequest", func() {
	It("accepts a request with known roles", func() {
		req := llm.ChatRequest{Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "be brief"),
			llm.NewTextMessage(llm.RoleUser, "hi"),
		}}
		Expect(req.Validate()).To(Succeed())
	})

	It("rejects an empty message list", func() {
		req := llm.ChatRequest{}
		Expect(req.Validate()).To(MatchError(llm.ErrNoMessages))
	})

	It("rejects roles outside the closed set", func() {
		req := llm.ChatRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}
		err := req.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring(`invalid role "tool"`))
	})

	It("decodes json_mode and optional parameters", func() {
		var req llm.ChatRequest
		err := json.Unmarshal([]byte(`{"messages":[{"role":"user","content":"q"}],"top_p":0.5,"json_mode":true}`), &req)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.JSONMode).To(BeTrue())
		Expect(*req.TopP).To(Equal(0.5))
		Expect(req.Temperature).To(BeNil())
	})
})

var _ = Describe("StreamEvent", func() {
	It("serializes a null finish reason", func() {
		out, err := json.Marshal(llm.StreamEvent{Content: "hi"})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal(`{"content":"hi","finish_reason":null}`))
	})

	It("serializes the stop event", func() {
		out, err := json.Marshal(llm.StopEvent())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal(`{"content":"","finish_reason":"stop"}`))
	})

	It("builds the parse error marker event", func() {
		ev := llm.ParseErrorEvent()
		Expect(ev.Content).To(Equal(llm.ParseErrorMarker))
		Expect(ev.FinishReason).To(BeNil())
	})

	It("treats an empty finish reason as null", func() {
		Expect(llm.FinishReasonPtr("")).To(BeNil())
		Expect(*llm.FinishReasonPtr("length")).To(Equal("length"))
	})
})

var _ = Describe("account defaults", func() {
	It("defaults model object and owner", func() {
		m := llm.NewModelInfo("deepseek-chat", "", "")
		Expect(m.Object).To(Equal("model"))
		Expect(m.OwnedBy).To(Equal("deepseek"))
	})

	It("defaults missing balance amounts to 0.00", func() {
		b := llm.NewBalanceInfo("USD", "12.50", "", "")
		Expect(b.Currency).To(Equal("USD"))
		Expect(b.TotalBalance).To(Equal("12.50"))
		Expect(b.GrantedBalance).To(Equal("0.00"))
		Expect(b.ToppedUpBalance).To(Equal("0.00"))
	})
})
