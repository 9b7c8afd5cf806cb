package biz

import (
	"context"
	"sync"

	"github.com/kart-io/docchat/pkg/llm"
)

// fakeEmbed 返回确定性向量的 Embedding 供应商。
type fakeEmbed struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEmbed) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		f.calls = append(f.calls, t)
		vectors[i] = embedText(t)
	}
	return vectors, nil
}

func (f *fakeEmbed) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbed) Name() string { return "fake-embed" }

// embedText 将文本映射到一个稳定的低维向量。
func embedText(text string) []float32 {
	v := []float32{0, 0, 0, 1}
	for i, r := range text {
		v[i%3] += float32(r%13) / 13
	}
	return v
}

// fakeChat 以函数字段驱动的 Chat 供应商。
type fakeChat struct {
	mu         sync.Mutex
	chatCalls  [][]llm.Message
	chatFn     func(messages []llm.Message) (string, error)
	generateFn func(prompt, systemPrompt string) (string, error)
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, messages)
	f.mu.Unlock()
	if f.chatFn != nil {
		return f.chatFn(messages)
	}
	return "ok", nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	if f.generateFn != nil {
		return f.generateFn(prompt, systemPrompt)
	}
	return "ok", nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// fakeStreamChat 支持流式生成的 fakeChat。
type fakeStreamChat struct {
	fakeChat
	streamFn func(ctx context.Context, messages []llm.Message, ch chan<- llm.StreamChunk) error
}

func (f *fakeStreamChat) ChatStream(ctx context.Context, messages []llm.Message, ch chan<- llm.StreamChunk) error {
	defer close(ch)
	return f.streamFn(ctx, messages, ch)
}

// fakeProvider 组合 Embedding 与 Chat，满足 llm.Provider。
type fakeProvider struct {
	fakeEmbed
	fakeChat
}

func (f *fakeProvider) Name() string { return "fake" }

// fakeExtractor 返回预设元素的提取器。
type fakeExtractor struct {
	raws []RawElement
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ string) ([]RawElement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}
