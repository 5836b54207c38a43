package stream

import (
	"errors"
	"io"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/llmux/pkg/sse"
)

// errDone marks a raw stream that ended with the [DONE] sentinel, as opposed
// to io.EOF for a body that simply ran out.
var errDone = errors.New("stream done")

// frame is the decoded content of one provider event before it becomes a
// Chunk.
type frame struct {
	content      string
	finishReason string
	metadata     map[string]any
}

// decoder pulls the next frame from a transport. It returns errDone or
// io.EOF at the end of the stream.
type decoder interface {
	decode() (frame, error)
}

func newDecoder(t *Transport) decoder {
	if t.openErr != nil {
		return &failedDecoder{err: t.openErr}
	}

	switch t.family {
	case FamilyTypedEvent:
		return &typedDecoder{src: t.events}
	case FamilyRawSSE:
		return &rawDecoder{reader: sse.NewTeeReader(t.body, t.tee)}
	default:
		return &failedDecoder{err: errors.New("unsupported provider family: " + t.family.String())}
	}
}

type failedDecoder struct {
	err error
}

func (d *failedDecoder) decode() (frame, error) {
	return frame{}, d.err
}

type typedDecoder struct {
	src EventSource
}

func (d *typedDecoder) decode() (frame, error) {
	if d.src == nil {
		return frame{}, errors.New("typed-event transport has no event source")
	}
	if !d.src.Next() {
		if err := d.src.Err(); err != nil {
			return frame{}, err
		}
		return frame{}, io.EOF
	}

	ev := d.src.Event()
	f := frame{
		content:      ev.Content,
		finishReason: ev.FinishReason,
		metadata:     map[string]any{},
	}
	if ev.Usage != nil {
		f.metadata["usage"] = ev.Usage.Map()
	}
	if ev.SearchResults != nil {
		f.metadata["search_results"] = ev.SearchResults
	}
	return f, nil
}

type rawDecoder struct {
	reader *sse.Reader
}

func (d *rawDecoder) decode() (frame, error) {
	for {
		data, err := d.reader.NextData()
		if err != nil {
			return frame{}, err
		}
		if sse.IsDone(data) {
			return frame{}, errDone
		}

		if f, ok := rawFrame([]byte(data)); ok {
			return f, nil
		}
	}
}

// rawFrame extracts a frame from one OpenAI-style JSON payload. It reports
// false for payloads that are not JSON or carry no choices; those are skipped.
func rawFrame(payload []byte) (frame, bool) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return frame{}, false
	}

	doc := gjson.ParseBytes(payload)
	choice := doc.Get("choices.0")
	if !choice.Exists() {
		return frame{}, false
	}

	f := frame{
		content:      choice.Get("delta.content").String(),
		finishReason: choice.Get("finish_reason").String(),
		metadata:     map[string]any{},
	}

	usage := doc.Get("usage")
	if !usage.IsObject() {
		// Groq reports usage under its extension object on the last chunk.
		usage = doc.Get("x_groq.usage")
	}
	if usage.IsObject() {
		f.metadata["usage"] = Usage{
			PromptTokens:     usage.Get("prompt_tokens").Int(),
			CompletionTokens: usage.Get("completion_tokens").Int(),
			TotalTokens:      usage.Get("total_tokens").Int(),
		}.Map()
	}
	return f, true
}
