package websearch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	fragments []string
}

func (s *sinkRecorder) Sink(fragment string) error {
	s.fragments = append(s.fragments, fragment)
	return nil
}

func (s *sinkRecorder) Text() string { return strings.Join(s.fragments, "") }

func feedAll(t *testing.T, agg *Aggregator, stream string, chunkSize int) {
	t.Helper()
	data := []byte(stream)
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		require.NoError(t, agg.Feed(data[:n]))
		data = data[n:]
	}
}

func TestAggregatorStreamsDeltas(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	feedAll(t, agg, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hello \"}\n\n", 1024)
	feedAll(t, agg, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"world\"}\n\n", 1024)
	feedAll(t, agg, "data: [DONE]\n\n", 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Hello world", res.Message)
	assert.Empty(t, res.Citations)
	assert.True(t, res.Displayed)
	assert.Equal(t, []string{"Hello ", "world"}, rec.fragments)
}

func TestAggregatorStructuredDeltaParts(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {\"type\":\"response.output_text.delta\",\"delta\":{\"content\":[" +
		"{\"type\":\"output_text\",\"text_delta\":\"seg one \"}," +
		"{\"type\":\"output_text\",\"text_delta\":\"seg two\"}]}}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "seg one seg two", res.Message)
	assert.Equal(t, []string{"seg one ", "seg two"}, rec.fragments)
	assert.True(t, res.Displayed)
}

func TestAggregatorFullTextBlock(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {\"type\":\"response.output_text\",\"output\":{\"content\":[" +
		"{\"type\":\"text\",\"text\":\"Full block\"}]}}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Full block", res.Message)
	assert.True(t, res.Displayed)
}

func TestAggregatorFallsBackToCompletedResponse(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {\"type\":\"response.completed\",\"response\":{\"output\":[{\"type\":\"message\",\"content\":[" +
		"{\"type\":\"output_text\",\"text\":\"Answer from the final document.\",\"annotations\":[" +
		"{\"url\":\"https://example.com\",\"title\":\"Example\"}]}]}]}}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Answer from the final document.", res.Message)
	assert.False(t, res.Displayed)
	assert.Empty(t, rec.fragments)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "https://example.com", res.Citations[0].URL)
	assert.Equal(t, "Example", res.Citations[0].Title)
}

func TestAggregatorMessageEventSeedsBuffer(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {\"type\":\"message\",\"content\":[" +
		"{\"type\":\"output_text\",\"text\":\"Part one. \"}," +
		"{\"text_delta\":\"Part two.\"}]}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", res.Message)
	assert.False(t, res.Displayed, "message events must not count as live output")
	assert.Empty(t, rec.fragments)
}

func TestAggregatorUntypedOutputDocument(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)

	stream := "data: {\"output\":[{\"type\":\"message\",\"content\":[" +
		"{\"type\":\"output_text\",\"text\":\"From document\"}]}]}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "From document", res.Message)
	assert.False(t, res.Displayed)
}

func TestAggregatorChunkBoundaryIndependence(t *testing.T) {
	stream := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"héllo \"}\r\n\r\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"wörld\"}\n\n" +
		"data: {\"type\":\"response.completed\",\"response\":{\"output\":[{\"type\":\"message\",\"content\":[" +
		"{\"type\":\"output_text\",\"text\":\"unused\",\"annotations\":[" +
		"{\"url\":\"https://a.example\",\"title\":\"A\"}]}]}]}}\n\n" +
		"data: [DONE]\n\n"

	run := func(chunkSize int) (*Result, []string) {
		rec := &sinkRecorder{}
		agg := NewAggregator(ProtocolResponses, rec.Sink)
		feedAll(t, agg, stream, chunkSize)
		res, err := agg.Finish()
		require.NoError(t, err)
		return res, rec.fragments
	}

	whole, wholeFragments := run(len(stream))
	require.Equal(t, "héllo wörld", whole.Message)
	require.True(t, whole.Displayed)
	require.Len(t, whole.Citations, 1)

	for _, size := range []int{1, 2, 3, 5, 7, 64} {
		res, fragments := run(size)
		assert.Equal(t, whole, res, "chunk size %d", size)
		assert.Equal(t, wholeFragments, fragments, "chunk size %d", size)
	}
}

func TestAggregatorSentinelDiscardsTrailingData(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"kept\"}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"dropped\"}\n\n"
	feedAll(t, agg, stream, 1024)
	assert.True(t, agg.Done())

	require.NoError(t, agg.Feed([]byte("data: {\"type\":\"response.output_text.delta\",\"delta\":\"late\"}\n\n")))

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "kept", res.Message)
	assert.Equal(t, []string{"kept"}, rec.fragments)
}

func TestAggregatorSentinelDiscardsSameBlockPayloads(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	block := "data: {\"type\":\"response.output_text.delta\",\"delta\":\"never\"}\ndata: [DONE]\n\n"
	feedAll(t, agg, block, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Empty(t, res.Message)
	assert.Empty(t, rec.fragments)
	assert.False(t, res.Displayed)
}

func TestAggregatorFlushesTrailingBlock(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	feedAll(t, agg, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"tail\"}", 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "tail", res.Message)
	assert.True(t, res.Displayed)
	assert.Equal(t, []string{"tail"}, rec.fragments)
}

func TestAggregatorTrailingBlockErrorPropagates(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)
	feedAll(t, agg, "data: {\"type\":\"response.error\",\"error\":{\"message\":\"ran dry\"}}", 1024)

	_, err := agg.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ran dry")
}

func TestAggregatorMalformedBlockSkippedByDefault(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	stream := "data: {this is not json}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"ok\"}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Message)
}

func TestAggregatorMalformedBlockFatalInStrictMode(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil, WithStrictJSON(true))

	err := agg.Feed([]byte("data: {this is not json}\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed stream payload")
}

func TestAggregatorRawBlockBestEffort(t *testing.T) {
	t.Run("parsable raw block is handled", func(t *testing.T) {
		agg := NewAggregator(ProtocolResponses, nil)
		stream := "{\"output\":[{\"type\":\"message\",\"content\":[{\"type\":\"output_text\",\"text\":\"raw\"}]}]}\n\n"
		feedAll(t, agg, stream, 1024)
		res, err := agg.Finish()
		require.NoError(t, err)
		assert.Equal(t, "raw", res.Message)
	})

	t.Run("unparsable raw block is ignored even in strict mode", func(t *testing.T) {
		agg := NewAggregator(ProtocolResponses, nil, WithStrictJSON(true))
		require.NoError(t, agg.Feed([]byte(": keep-alive comment\n\n")))
		res, err := agg.Finish()
		require.NoError(t, err)
		assert.Empty(t, res.Message)
	})
}

func TestAggregatorErrorEventAborts(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)

	err := agg.Feed([]byte("data: {\"type\":\"response.error\",\"error\":{\"message\":\"quota exceeded\"}}\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAggregatorErrorEventDefaultMessage(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)

	err := agg.Feed([]byte("data: {\"type\":\"response.error\"}\n\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown error")
}

func TestAggregatorSinkFailureAborts(t *testing.T) {
	sinkErr := errors.New("pipe closed")
	agg := NewAggregator(ProtocolResponses, func(string) error { return sinkErr })

	err := agg.Feed([]byte("data: {\"type\":\"response.output_text.delta\",\"delta\":\"x\"}\n\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sinkErr)
}

func TestAggregatorEmptyStream(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Empty(t, res.Message)
	assert.Empty(t, res.Citations)
	assert.False(t, res.Displayed)
}

func TestAggregatorFinishTwice(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)
	_, err := agg.Finish()
	require.NoError(t, err)
	_, err = agg.Finish()
	require.Error(t, err)
}

func TestAggregatorCitationDedupFirstTitleWins(t *testing.T) {
	agg := NewAggregator(ProtocolResponses, nil)

	stream := "data: {\"annotations\":[{\"url\":\"https://example.com\",\"title\":\"First\"}]}\n\n" +
		"data: {\"annotations\":[{\"url\":\"https://example.com\",\"title\":\"Second\"}," +
		"{\"url\":\"https://other.example\"}]}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, Citation{URL: "https://example.com", Title: "First"}, res.Citations[0])
	assert.Equal(t, Citation{URL: "https://other.example"}, res.Citations[1])
}

func TestAggregatorSplitCRLFAcrossChunks(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	require.NoError(t, agg.Feed([]byte("data: {\"type\":\"response.output_text.delta\",\"delta\":\"a\"}\r")))
	require.NoError(t, agg.Feed([]byte("\n\r")))
	require.NoError(t, agg.Feed([]byte("\ndata: [DONE]\n\n")))

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "a", res.Message)
	assert.Equal(t, []string{"a"}, rec.fragments)
}

func TestAggregatorEmitDeltaValue(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolResponses, rec.Sink)

	delta := mustUnmarshal(t, `{"content":[{"type":"output_text","text_delta":"hello "},{"type":"output_text","text_delta":"world"}]}`)
	emitted, err := agg.emitDeltaValue(delta)
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Equal(t, "hello world", rec.Text())
	assert.Equal(t, "hello world", agg.textBuffer.String())
}

func TestChatAggregatorStreamsDeltas(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolChatCompletions, rec.Sink)

	stream := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"The answer\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" is 42.\"}}]}\n\n" +
		"data: {\"choices\":[{\"finish_reason\":\"stop\",\"message\":{\"role\":\"assistant\",\"content\":\"unused\"}}]}\n\n" +
		"data: [DONE]\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", res.Message)
	assert.True(t, res.Displayed)
	assert.Equal(t, []string{"The answer", " is 42."}, rec.fragments)
}

func TestChatAggregatorFinalMessageFallback(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolChatCompletions, rec.Sink)

	stream := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n" +
		"data: {\"choices\":[{\"finish_reason\":\"stop\",\"message\":{\"role\":\"assistant\",\"content\":\"Done.\"}}]}\n\n" +
		"data: [DONE]\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "Done.", res.Message)
	assert.False(t, res.Displayed)
	assert.Empty(t, rec.fragments)
}

func TestChatAggregatorStructuredDeltaParts(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolChatCompletions, rec.Sink)

	stream := "data: {\"choices\":[{\"delta\":{\"content\":[" +
		"{\"type\":\"text\",\"text_delta\":\"chunk one \"}," +
		"{\"type\":\"text\",\"text_delta\":\"chunk two\"}]}}]}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "chunk one chunk two", res.Message)
	assert.True(t, res.Displayed)
}

func TestChatAggregatorPayloadWithoutChoicesSeedsBuffer(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolChatCompletions, rec.Sink)

	feedAll(t, agg, "data: {\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"out of band\"}]}}\n\n", 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "out of band", res.Message)
	assert.False(t, res.Displayed)
	assert.Empty(t, rec.fragments)
}

func TestChatAggregatorFinalMessageSerializedAsLastResort(t *testing.T) {
	agg := NewAggregator(ProtocolChatCompletions, nil)

	feedAll(t, agg, "data: {\"choices\":[{\"finish_reason\":\"stop\",\"message\":{\"role\":\"assistant\"}}]}\n\n", 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, `{"role":"assistant"}`, res.Message)
	assert.False(t, res.Displayed)
}

func TestChatAggregatorDeltaCitationsHarvested(t *testing.T) {
	rec := &sinkRecorder{}
	agg := NewAggregator(ProtocolChatCompletions, rec.Sink)

	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"cited\",\"annotations\":[" +
		"{\"url\":\"https://cite.example\",\"title\":\"Cite\"}]}}]}\n\n"
	feedAll(t, agg, stream, 1024)

	res, err := agg.Finish()
	require.NoError(t, err)
	assert.Equal(t, "cited", res.Message)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "https://cite.example", res.Citations[0].URL)
}
