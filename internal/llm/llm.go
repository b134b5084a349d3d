package llm

import (
	"context"
	"strings"

	"Merem-Agent/pkg/plugin"
)

// Client 定义了调用大模型生成文本的统一接口。
type Client interface {
	GenerateText(ctx context.Context, req plugin.TextRequest) (string, error)
}

// Models 将模型等级映射为具体的模型名称。
type Models struct {
	Small  string
	Medium string
	Large  string
}

// Resolve 返回模型等级对应的模型名，未配置的等级回落到 fallback。
func (m Models) Resolve(class plugin.ModelClass, fallback string) string {
	var name string
	switch class {
	case plugin.ModelSmall:
		name = m.Small
	case plugin.ModelMedium:
		name = m.Medium
	case plugin.ModelLarge:
		name = m.Large
	}
	if strings.TrimSpace(name) == "" {
		name = m.Medium
	}
	if strings.TrimSpace(name) == "" {
		name = fallback
	}
	return name
}

// WithDefaults 为空缺的等级填充默认模型。
func (m Models) WithDefaults(small, medium, large string) Models {
	if m.Small == "" {
		m.Small = small
	}
	if m.Medium == "" {
		m.Medium = medium
	}
	if m.Large == "" {
		m.Large = large
	}
	return m
}

// TrimStop 截断 stop 序列之后的内容，用于不支持 stop 参数的后端。
func TrimStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if idx := strings.Index(text, s); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(text[:cut])
}

// ClientFunc 允许使用普通函数实现 Client。
type ClientFunc func(ctx context.Context, req plugin.TextRequest) (string, error)

// GenerateText 实现 Client 接口。
func (f ClientFunc) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	return f(ctx, req)
}
