package memory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

const redisKeyPrefix = "merem:memory"

// RedisStore 为每个房间维护一个 Redis list，新记录 LPUSH 到表头。
type RedisStore struct {
	client *redis.Client
	table  string
}

// NewRedisStore 接受 redis:// URL 或 host:port 地址。
func NewRedisStore(ctx context.Context, dsn, table string) (*RedisStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	opts, err := redisOptions(dsn)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storageError(err, "连接 Redis 失败")
	}
	return NewRedisStoreWithClient(client, table), nil
}

// NewRedisStoreWithClient 复用已有的 Redis 客户端。
func NewRedisStoreWithClient(client *redis.Client, table string) *RedisStore {
	return &RedisStore{client: client, table: table}
}

func redisOptions(dsn string) (*redis.Options, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis 地址不能为空")
	}
	if strings.Contains(dsn, "://") {
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "Redis URL 无效")
		}
		return opts, nil
	}
	return &redis.Options{Addr: dsn}, nil
}

func (s *RedisStore) key(roomID uuid.UUID) string {
	return redisKeyPrefix + ":" + s.table + ":" + roomID.String()
}

// CreateMemory 写入一条记忆。
func (s *RedisStore) CreateMemory(ctx context.Context, m plugin.Memory) error {
	if err := validateMemory(m); err != nil {
		return err
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return storageError(err, "序列化记忆失败")
	}
	if err := s.client.LPush(ctx, s.key(m.RoomID), encoded).Err(); err != nil {
		return storageError(err, "Redis 写入记忆失败")
	}
	return nil
}

// GetMemories 返回房间内最近的记忆。
func (s *RedisStore) GetMemories(ctx context.Context, q plugin.MemoryQuery) ([]plugin.Memory, error) {
	count := normalizeCount(q.Count)
	values, err := s.client.LRange(ctx, s.key(q.RoomID), 0, int64(count-1)).Result()
	if err != nil {
		return nil, storageError(err, "Redis 查询记忆失败")
	}
	results := make([]plugin.Memory, 0, len(values))
	for _, raw := range values {
		var m plugin.Memory
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		results = append(results, m)
	}
	sortNewest(results)
	return results, nil
}

// CountMemories 返回房间内的记忆条数。
func (s *RedisStore) CountMemories(ctx context.Context, roomID uuid.UUID) (int, error) {
	n, err := s.client.LLen(ctx, s.key(roomID)).Result()
	if err != nil {
		return 0, storageError(err, "Redis 统计记忆失败")
	}
	return int(n), nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
