package stream_test

import (
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/llmux/pkg/stream"
)

func decodeFrame(frame string) map[string]any {
	GinkgoHelper()
	Expect(frame).To(HavePrefix("data: "))
	Expect(frame).To(HaveSuffix("\n\n"))

	var out map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")), &out)).To(Succeed())
	return out
}

const doneFrame = "data: [DONE]\n\n"

var _ = Describe("Response", func() {
	Describe("EventStream", func() {
		It("frames N content chunks, a finish frame and one sentinel", func() {
			src := &fakeSource{events: append(contentEvents("Hel", "lo", " wörld"),
				stream.TypedEvent{FinishReason: "stop"})}
			frames := collect(openTyped("openai", src).EventStream())

			Expect(frames).To(HaveLen(5))
			Expect(decodeFrame(frames[0])["content"]).To(Equal("Hel"))
			Expect(decodeFrame(frames[2])["content"]).To(Equal(" wörld"))

			finish := decodeFrame(frames[3])
			Expect(finish["type"]).To(Equal("finish"))
			Expect(finish["finish_reason"]).To(Equal("stop"))
			Expect(finish["metadata"]).To(Equal(map[string]any{
				"total_chunks":         float64(3),
				"total_content_length": float64(11),
				"provider":             "openai",
			}))

			Expect(frames[4]).To(Equal(doneFrame))
			Expect(src.closed).To(Equal(1))
		})

		It("frames raw SSE content and ends with the sentinel", func() {
			body := rawBody("data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n\n" +
				"data: [DONE]\n\n")
			frames := collect(openRaw("groq", body).EventStream())

			Expect(frames).To(HaveLen(3))
			Expect(decodeFrame(frames[0])["content"]).To(Equal("A"))
			Expect(decodeFrame(frames[1])["content"]).To(Equal("B"))
			Expect(frames[2]).To(Equal(doneFrame))
			Expect(body.closed).To(Equal(1))
		})

		It("emits the error frame then the sentinel", func() {
			src := &fakeSource{events: contentEvents("one", "two"), err: errConnReset}
			frames := collect(openTyped("openai", src).EventStream())

			Expect(frames).To(HaveLen(4))
			errFrame := decodeFrame(frames[2])
			Expect(errFrame["type"]).To(Equal("error"))
			Expect(errFrame["error"]).To(Equal("connection reset by peer"))
			Expect(errFrame["metadata"]).To(HaveKeyWithValue("provider", "openai"))
			Expect(frames[3]).To(Equal(doneFrame))
		})

		It("ends a failed open with an error frame and the sentinel", func() {
			resp := stream.Open("openai", stream.Failed(stream.FamilyTypedEvent, errors.New("dial tcp: refused")))
			frames := collect(resp.EventStream())

			Expect(frames).To(HaveLen(2))
			Expect(decodeFrame(frames[0])["error"]).To(Equal("dial tcp: refused"))
			Expect(frames[1]).To(Equal(doneFrame))
		})

		It("reports a family mismatch through the stream", func() {
			src := &fakeSource{events: contentEvents("x")}
			frames := collect(openTyped("groq", src).EventStream())

			Expect(frames).To(HaveLen(2))
			Expect(decodeFrame(frames[0])["error"]).To(ContainSubstring("transport family does not match provider"))
			Expect(src.closed).To(Equal(1))
		})

		It("yields only the sentinel for an empty stream", func() {
			frames := collect(openRaw("groq", rawBody("data: [DONE]\n\n")).EventStream())
			Expect(frames).To(Equal([]string{doneFrame}))
		})

		It("yields nothing after the consumer stops and still closes the transport", func() {
			src := &fakeSource{events: contentEvents("a", "b", "c")}
			resp := openTyped("openai", src)

			var frames []string
			for frame := range resp.EventStream() {
				frames = append(frames, frame)
				break
			}

			Expect(frames).To(HaveLen(1))
			Expect(src.closed).To(Equal(1))
			Expect(src.pulls).To(Equal(1))
		})

		It("sends the sentinel once across repeated iterations", func() {
			resp := openTyped("openai", &fakeSource{events: contentEvents("a")})

			first := collect(resp.EventStream())
			second := collect(resp.EventStream())
			Expect(first).To(HaveLen(2))
			Expect(second).To(BeEmpty())
		})

		It("does not call the consumer again after it panics", func() {
			resp := openTyped("openai", &fakeSource{events: contentEvents("a", "b")})

			calls := 0
			Expect(func() {
				for range resp.EventStream() {
					calls++
					panic("consumer failed")
				}
			}).To(PanicWith("consumer failed"))
			Expect(calls).To(Equal(1))
		})
	})

	Describe("WriteEventStream", func() {
		It("writes every frame", func() {
			var buf strings.Builder
			resp := openTyped("openai", &fakeSource{events: append(contentEvents("hi"), stream.TypedEvent{FinishReason: "stop"})})

			Expect(resp.WriteEventStream(&buf)).To(Succeed())
			Expect(buf.String()).To(HavePrefix("data: {\"content\":\"hi\""))
			Expect(buf.String()).To(HaveSuffix("\n\n" + doneFrame))
			Expect(strings.Count(buf.String(), "[DONE]")).To(Equal(1))
		})

		It("stops at the first write error and closes the transport", func() {
			src := &fakeSource{events: contentEvents("a", "b", "c")}
			w := &limitedWriter{allowed: 1}

			err := openTyped("openai", src).WriteEventStream(w)
			Expect(err).To(MatchError(ContainSubstring("client gone")))
			Expect(w.writes).To(Equal(2))
			Expect(src.closed).To(Equal(1))
		})

		It("flushes after every frame when supported", func() {
			w := &flushingWriter{}
			Expect(openTyped("openai", &fakeSource{events: contentEvents("a", "b")}).WriteEventStream(w)).To(Succeed())
			Expect(w.flushes).To(Equal(3))
		})
	})

	Describe("MessageStream", func() {
		It("yields chunk JSON without framing or sentinel", func() {
			src := &fakeSource{events: []stream.TypedEvent{
				{Content: "a"},
				{Content: ""},
				{FinishReason: "stop"},
			}}
			msgs := collect(openTyped("gemini", src).MessageStream())

			Expect(msgs).To(HaveLen(2))
			var last stream.Chunk
			Expect(json.Unmarshal([]byte(msgs[1]), &last)).To(Succeed())
			Expect(last.FinishReason).To(Equal("stop"))
			for _, m := range msgs {
				Expect(m).NotTo(HavePrefix("data:"))
				Expect(m).NotTo(ContainSubstring("[DONE]"))
			}
			Expect(src.closed).To(Equal(1))
		})

		It("ends after the error chunk", func() {
			src := &fakeSource{events: contentEvents("a"), err: errConnReset}
			msgs := collect(openTyped("openai", src).MessageStream())

			Expect(msgs).To(HaveLen(2))
			var errChunk stream.Chunk
			Expect(json.Unmarshal([]byte(msgs[1]), &errChunk)).To(Succeed())
			Expect(errChunk.Kind).To(Equal(stream.KindError))
		})
	})

	Describe("CollectFull", func() {
		It("concatenates content and counts content chunks", func() {
			body := rawBody("data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n\n" +
				"data: [DONE]\n\n")
			res := openRaw("ali", body).CollectFull()

			Expect(res.Success).To(BeTrue())
			Expect(res.Content).To(Equal("AB"))
			Expect(res.ChunkCount).To(Equal(2))
			Expect(res.Error).To(BeEmpty())
		})

		It("keeps partial content when the stream fails", func() {
			src := &fakeSource{events: contentEvents("par", "tial"), err: errConnReset}
			res := openTyped("openai", src).CollectFull()

			Expect(res.Success).To(BeFalse())
			Expect(res.Content).To(Equal("partial"))
			Expect(res.ChunkCount).To(Equal(2))
			Expect(res.Error).To(Equal("connection reset by peer"))
			Expect(res.Metadata).To(HaveKeyWithValue("provider", "openai"))
			Expect(src.closed).To(Equal(1))
		})

		It("merges metadata with the last write winning", func() {
			src := &fakeSource{events: []stream.TypedEvent{
				{Content: "a", Usage: &stream.Usage{TotalTokens: 1}},
				{Content: "b", SearchResults: "first"},
				{Content: "c", Usage: &stream.Usage{TotalTokens: 9}},
			}}
			res := openTyped("perplexity", src).CollectFull()

			Expect(res.Success).To(BeTrue())
			Expect(res.Metadata["usage"]).To(HaveKeyWithValue("total_tokens", int64(9)))
			Expect(res.Metadata["search_results"]).To(Equal("first"))
		})

		It("serializes the result contract", func() {
			res := openTyped("openai", &fakeSource{events: contentEvents("x")}).CollectFull()
			b, err := json.Marshal(res)
			Expect(err).NotTo(HaveOccurred())

			var out map[string]any
			Expect(json.Unmarshal(b, &out)).To(Succeed())
			Expect(out).To(HaveKeyWithValue("success", true))
			Expect(out).To(HaveKeyWithValue("content", "x"))
			Expect(out).To(HaveKeyWithValue("chunk_count", float64(1)))
			Expect(out).To(HaveKey("metadata"))
			Expect(out).NotTo(HaveKey("error"))
		})
	})
})

type limitedWriter struct {
	allowed int
	writes  int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.allowed {
		return 0, errors.New("client gone")
	}
	return len(p), nil
}

type flushingWriter struct {
	strings.Builder
	flushes int
}

func (w *flushingWriter) Flush() error {
	w.flushes++
	return nil
}
