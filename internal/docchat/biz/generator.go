package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/model"
	"github.com/kart-io/docchat/pkg/llm"
)

// answerSystemPrompt 回答生成的固定角色设定。
const answerSystemPrompt = `You are a helpful assistant that answers questions about documents.
Answer strictly based on the provided context (text excerpts and images).
Cite the page markers from the context, e.g. [Page 3], when referencing information.
If the context does not contain the answer, say so clearly instead of guessing.`

// 流式生成失败时的回退文本。
const (
	safetyFallbackAnswer = "I apologize, but I cannot provide a response to this query " +
		"due to content safety restrictions. Please try rephrasing your question."
	genericFallbackAnswer = "I apologize, but an error occurred while generating the " +
		"response. Please try again."
	emptyFallbackAnswer = "I apologize, but I couldn't generate a response based on the " +
		"provided context. Please try rephrasing your question."
)

// FragmentFunc 每个生成片段调用一次，返回错误时中止生成。
type FragmentFunc func(fragment string) error

// Generator 基于检索上下文流式生成回答。
type Generator struct{}

// NewGenerator 创建回答生成器。
func NewGenerator() *Generator {
	return &Generator{}
}

// Stream 流式生成回答，片段到达即转发给 onFragment。
// 返回完整回答文本。生成中途失败时发送分类后的回退片段
// 并以回退文本作为最终回答；完全无内容时发送固定致歉。
func (g *Generator) Stream(
	ctx context.Context,
	chat llm.ChatProvider,
	question string,
	retrieved model.RetrievedContext,
	history []model.Turn,
	onFragment FragmentFunc,
) (string, error) {
	messages := g.buildMessages(question, retrieved, history)

	var sb strings.Builder
	streamErr := g.stream(ctx, chat, messages, func(fragment string) error {
		sb.WriteString(fragment)
		return onFragment(fragment)
	})

	// 调用方中止（客户端断开等）直接透传。
	if streamErr != nil && (errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, context.DeadlineExceeded)) {
		return sb.String(), streamErr
	}

	if streamErr != nil {
		fallback := genericFallbackAnswer
		if errors.Is(streamErr, llm.ErrBlocked) {
			fallback = safetyFallbackAnswer
		}
		logger.Warnw("回答生成失败，发送回退文本", "error", streamErr)
		if err := onFragment(fallback); err != nil {
			return fallback, err
		}
		return fallback, nil
	}

	if strings.TrimSpace(sb.String()) == "" {
		if err := onFragment(emptyFallbackAnswer); err != nil {
			return emptyFallbackAnswer, err
		}
		return emptyFallbackAnswer, nil
	}

	return sb.String(), nil
}

// stream 优先使用流式接口，供应商不支持时退化为一次性生成。
func (g *Generator) stream(ctx context.Context, chat llm.ChatProvider, messages []llm.Message, onFragment FragmentFunc) error {
	sp, ok := chat.(llm.StreamProvider)
	if !ok {
		answer, err := chat.Chat(ctx, messages)
		if err != nil {
			return err
		}
		if answer != "" {
			return onFragment(answer)
		}
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan llm.StreamChunk, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sp.ChatStream(streamCtx, messages, ch)
	}()

	// 转发中止后继续排空通道，等供应商协程退出，避免其阻塞在发送上。
	var emitErr error
	for chunk := range ch {
		if emitErr != nil || chunk.Text == "" {
			continue
		}
		if err := onFragment(chunk.Text); err != nil {
			emitErr = err
			cancel()
		}
	}
	streamErr := <-errCh
	if emitErr != nil {
		return emitErr
	}
	return streamErr
}

// buildMessages 装配多轮消息：历史会话 + 上下文与问题的用户轮，
// 图片作为多模态内容附在用户轮上。
func (g *Generator) buildMessages(question string, retrieved model.RetrievedContext, history []model.Turn) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemPrompt},
	}

	for _, turn := range history {
		role := llm.RoleUser
		if turn.Sender == model.SenderAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}

	var sb strings.Builder
	if text := FormatContext(retrieved); text != "" {
		sb.WriteString("Context:\n")
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	if len(retrieved.Images) > 0 {
		fmt.Fprintf(&sb, "The context also includes %d image(s) attached to this message.\n\n", len(retrieved.Images))
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: sb.String(),
		Images:  retrieved.Images,
	})

	return messages
}
