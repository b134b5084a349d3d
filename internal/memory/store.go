package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"Merem-Agent/internal/config"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

// 记忆表名，messages 保存对话，facts 保存事实评估器抽取的结论。
const (
	TableMessages = "messages"
	TableFacts    = "facts"
)

// DefaultCount 是 GetMemories 未指定数量时返回的条数。
const DefaultCount = 20

// Store 抽象记忆的持久化接口。
type Store interface {
	plugin.MemoryManager
	Close() error
}

// Open 根据配置创建指定表的存储。
func Open(ctx context.Context, cfg config.MemoryConfig, table string) (Store, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		store, err = NewFileStore(cfg.DataDir, table)
	case "mysql":
		store, err = NewMySQLStore(ctx, MySQLConfig{DSN: cfg.DSN}, table)
	case "postgres":
		store, err = NewPostgresStore(ctx, cfg.DSN, table)
	case "redis":
		store, err = NewRedisStore(ctx, cfg.DSN, table)
	case "mongo":
		store, err = NewMongoStore(ctx, cfg.DSN, cfg.Database, table)
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("不支持的记忆存储驱动 %s", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func validateTable(table string) error {
	switch table {
	case TableMessages, TableFacts:
		return nil
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知的记忆表 %q", table))
	}
}

func validateMemory(m plugin.Memory) error {
	if m.ID == uuid.Nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "memory id 不能为空")
	}
	if m.RoomID == uuid.Nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "room id 不能为空")
	}
	return nil
}

func normalizeCount(count int) int {
	if count <= 0 {
		return DefaultCount
	}
	return count
}

// sortNewest 按创建时间倒序排列，时间相同时保持插入顺序的逆序。
func sortNewest(items []plugin.Memory) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt > items[j].CreatedAt
	})
}

func storageError(err error, msg string) error {
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, msg)
}
