package parser

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// stubChatModel 测试用的固定响应模型
type stubChatModel struct {
	response string
	err      error

	// 记录收到的消息, 方便断言prompt组装
	received [][]*schema.Message
}

func newStubChatModel(response string, err error) *stubChatModel {
	return &stubChatModel{response: response, err: err}
}

func (m *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	msgs := make([]*schema.Message, len(input))
	copy(msgs, input)
	m.received = append(m.received, msgs)

	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.response, nil), nil
}

func (m *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("stubChatModel 不支持流式调用")
}

func (m *stubChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *stubChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}
