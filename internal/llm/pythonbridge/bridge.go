package pythonbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/llm"
	"Merem-Agent/pkg/plugin"
)

// Client 通过调用外部脚本实现文本生成。脚本从 stdin 读取 JSON 请求，
// 并向 stdout 输出 {"text": "..."}。
type Client struct {
	pythonExec string
	scriptPath string
	workingDir string
}

// NewClient 创建 Python Bridge 客户端。
func NewClient(pythonExec, scriptPath, workingDir string) (*Client, error) {
	if scriptPath == "" {
		return nil, fmt.Errorf("未指定 Python 脚本路径")
	}
	if pythonExec == "" {
		pythonExec = "python3"
	}
	return &Client{
		pythonExec: pythonExec,
		scriptPath: scriptPath,
		workingDir: workingDir,
	}, nil
}

type request struct {
	Context     string   `json:"context"`
	ModelClass  string   `json:"model_class"`
	Stop        []string `json:"stop,omitempty"`
	Temperature float32  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// GenerateText 调用外部脚本，并解析输出。
func (c *Client) GenerateText(ctx context.Context, req plugin.TextRequest) (string, error) {
	encoded, err := json.Marshal(request{
		Context:     req.Context,
		ModelClass:  string(req.ModelClass),
		Stop:        req.Stop,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	command := exec.CommandContext(ctx, c.pythonExec, c.scriptPath)
	if c.workingDir != "" {
		command.Dir = c.workingDir
	}
	command.Stdin = bytes.NewReader(encoded)

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "执行 Python 脚本失败",
			xerrors.WithMetadata("stderr", strings.TrimSpace(stderr.String())))
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", xerrors.Wrap(xerrors.CodeModelFailure, err, "解析 Python 输出失败")
	}
	return llm.TrimStop(resp.Text, req.Stop), nil
}

// ResolveScriptPath 根据工作目录推导脚本绝对路径。
func ResolveScriptPath(baseDir, script string) string {
	if script == "" {
		return ""
	}
	if filepath.IsAbs(script) {
		return script
	}
	if baseDir == "" {
		return script
	}
	return filepath.Join(baseDir, script)
}
