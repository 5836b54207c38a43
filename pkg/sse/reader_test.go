package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }

var _ = Describe("Reader", func() {
	Describe("Next", func() {
		Context("with standard SSE events", func() {
			It("parses a single event then reports io.EOF", func() {
				r := NewReader(strings.NewReader("data: hello world\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello world"))
				Expect(ev.Type).To(BeEmpty())

				_, err = r.Next()
				Expect(err).To(MatchError(io.EOF))
			})

			It("parses event type and id", func() {
				r := NewReader(strings.NewReader("event: delta\nid: 7\ndata: {}\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Type).To(Equal("delta"))
				Expect(ev.ID).To(Equal("7"))
				Expect(ev.Data).To(Equal("{}"))
			})

			It("joins multiple data lines with newline", func() {
				r := NewReader(strings.NewReader("data: one\ndata: two\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("one\ntwo"))
			})
		})

		Context("with OpenAI-compatible streams", func() {
			It("yields each chunk and recognizes the [DONE] sentinel", func() {
				input := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n" +
					"data: [DONE]\n\n"
				r := NewReader(strings.NewReader(input))

				ev1, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev1.IsDone()).To(BeFalse())
				Expect(ev1.Data).To(ContainSubstring("Hello"))

				ev2, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev2.IsDone()).To(BeTrue())
			})
		})

		Context("with comments and keep-alives", func() {
			It("skips comments and blank lines", func() {
				r := NewReader(strings.NewReader(": ping\n\n\ndata: hello\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("hello"))
			})
		})

		Context("with data field variations", func() {
			It("handles data with no space after colon", func() {
				r := NewReader(strings.NewReader("data:no-space\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("no-space"))
			})

			It("handles a bare field with no colon", func() {
				r := NewReader(strings.NewReader("data\n\n"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(BeEmpty())
			})
		})

		Context("edge cases", func() {
			It("returns io.EOF on empty input", func() {
				_, err := NewReader(strings.NewReader("")).Next()
				Expect(err).To(MatchError(io.EOF))
			})

			It("yields a trailing event without blank line", func() {
				r := NewReader(strings.NewReader("data: unterminated"))

				ev, err := r.Next()
				Expect(err).NotTo(HaveOccurred())
				Expect(ev.Data).To(Equal("unterminated"))

				_, err = r.Next()
				Expect(err).To(MatchError(io.EOF))
			})
		})
	})

	Describe("NextData", func() {
		It("returns each data line on its own", func() {
			r := NewReader(strings.NewReader("data: {\"a\":1}\ndata: {bad\ndata:{\"b\":2}\n\ndata: [DONE]\n"))

			var payloads []string
			for {
				data, err := r.NextData()
				if err != nil {
					Expect(err).To(MatchError(io.EOF))
					break
				}
				payloads = append(payloads, data)
			}
			Expect(payloads).To(Equal([]string{`{"a":1}`, "{bad", `{"b":2}`, "[DONE]"}))
		})

		It("skips comments, other fields and blank lines", func() {
			r := NewReader(strings.NewReader(": ping\nevent: chunk\nid: 7\n\ndata: x\n"))

			data, err := r.NextData()
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("x"))

			_, err = r.NextData()
			Expect(err).To(MatchError(io.EOF))
		})

		It("tees every line", func() {
			input := ": comment\ndata: first\ndata: [DONE]\n"
			var dst bytes.Buffer
			r := NewTeeReader(strings.NewReader(input), &dst)

			for {
				if _, err := r.NextData(); err != nil {
					break
				}
			}
			Expect(dst.String()).To(Equal(input))
		})
	})

	Describe("IsDone", func() {
		It("matches the sentinel with surrounding space", func() {
			Expect(IsDone(" [DONE] ")).To(BeTrue())
			Expect(IsDone("{}")).To(BeFalse())
		})
	})

	Describe("tee", func() {
		It("copies raw bytes verbatim", func() {
			input := ": comment\ndata: first\n\ndata: [DONE]\n\n"
			var dst bytes.Buffer
			r := NewTeeReader(strings.NewReader(input), &dst)

			for {
				if _, err := r.Next(); err != nil {
					break
				}
			}
			Expect(dst.String()).To(Equal(input))
		})

		It("surfaces tee write failures", func() {
			r := NewTeeReader(strings.NewReader("data: x\n\n"), failingWriter{})

			_, err := r.Next()
			Expect(err).To(MatchError("client gone"))
		})
	})

	Describe("Frame", func() {
		It("renders data frames", func() {
			Expect(Frame("{}")).To(Equal("data: {}\n\n"))
			Expect(DoneFrame).To(Equal("data: [DONE]\n\n"))
		})
	})
})
