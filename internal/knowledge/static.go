package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider 定义知识库检索的通用接口。
type Provider interface {
	Query(text, action string) []Snippet
}

// Snippet 描述可供大模型引用的一段知识。
type Snippet struct {
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Tags     []string `json:"tags" yaml:"tags"`
}

// StaticProvider 通过加载 JSON 或 YAML 文件提供静态知识检索能力。
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider 创建静态知识库实例。
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{
		items:      items,
		maxResults: maxResults,
	}
}

// LoadStaticProvider 从文件加载知识条目，按扩展名选择 JSON 或 YAML 解码。
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("知识库文件路径不能为空")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析知识库路径失败: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}

	var entries []Snippet
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("解析知识库文件失败: %w", err)
	}

	return NewStaticProvider(entries, maxResults), nil
}

// Query 根据消息文本和动作标签进行关键词匹配。
func (p *StaticProvider) Query(text, action string) []Snippet {
	if p == nil {
		return nil
	}

	text = strings.ToLower(strings.TrimSpace(text))
	action = strings.ToLower(strings.TrimSpace(action))

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, text, action) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

// Format 将知识片段渲染为状态中的文本块，没有内容时返回空串。
func Format(snippets []Snippet) string {
	var b strings.Builder
	for _, snippet := range snippets {
		title := strings.TrimSpace(snippet.Title)
		content := strings.TrimSpace(snippet.Content)
		if title == "" && content == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Relevant knowledge:")
		}
		b.WriteString("\n- ")
		switch {
		case title == "":
			b.WriteString(content)
		case content == "":
			b.WriteString(title)
		default:
			b.WriteString(title + ": " + content)
		}
	}
	return b.String()
}

func matches(snippet Snippet, text, action string) bool {
	if len(snippet.Keywords) == 0 && len(snippet.Tags) == 0 {
		return true
	}
	for _, term := range append(append([]string(nil), snippet.Keywords...), snippet.Tags...) {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if normalized == "" {
			continue
		}
		if strings.Contains(text, normalized) || (action != "" && strings.Contains(action, normalized)) {
			return true
		}
	}
	return false
}

var _ Provider = (*StaticProvider)(nil)
