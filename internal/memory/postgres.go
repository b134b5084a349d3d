package memory

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS memories (
        id UUID PRIMARY KEY,
        table_name TEXT NOT NULL,
        room_id UUID NOT NULL,
        user_id UUID NOT NULL,
        agent_id UUID NOT NULL,
        content JSONB NOT NULL,
        created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_room ON memories (table_name, room_id, created_at DESC)`

// PostgresStore 使用 pgx 连接池保存记忆。
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore 创建连接池并初始化表结构。
func NewPostgresStore(ctx context.Context, databaseURL, table string) (*PostgresStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if strings.TrimSpace(databaseURL) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Postgres DSN 不能为空")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, storageError(err, "连接 Postgres 失败")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageError(err, "无法连接到 Postgres")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storageError(err, "初始化 memories 表失败")
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// CreateMemory 写入一条记忆。
func (s *PostgresStore) CreateMemory(ctx context.Context, m plugin.Memory) error {
	if err := validateMemory(m); err != nil {
		return err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return storageError(err, "序列化记忆内容失败")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO memories (id, table_name, room_id, user_id, agent_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, s.table, m.RoomID, m.UserID, m.AgentID, content, m.CreatedAt)
	if err != nil {
		return storageError(err, "写入记忆失败")
	}
	return nil
}

// GetMemories 返回房间内最近的记忆。
func (s *PostgresStore) GetMemories(ctx context.Context, q plugin.MemoryQuery) ([]plugin.Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, user_id, agent_id, content, created_at
		FROM memories WHERE table_name = $1 AND room_id = $2
		ORDER BY created_at DESC LIMIT $3
	`, s.table, q.RoomID, normalizeCount(q.Count))
	if err != nil {
		return nil, storageError(err, "查询记忆失败")
	}
	defer rows.Close()

	var results []plugin.Memory
	for rows.Next() {
		var (
			m       plugin.Memory
			content []byte
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.AgentID, &content, &m.CreatedAt); err != nil {
			return nil, storageError(err, "解析记忆失败")
		}
		if err := json.Unmarshal(content, &m.Content); err != nil {
			return nil, storageError(err, "解析记忆内容失败")
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历记忆失败")
	}
	return results, nil
}

// CountMemories 返回房间内的记忆条数。
func (s *PostgresStore) CountMemories(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM memories WHERE table_name = $1 AND room_id = $2`,
		s.table, roomID,
	).Scan(&count)
	if err != nil {
		return 0, storageError(err, "统计记忆失败")
	}
	return count, nil
}

// Close 关闭连接池。
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
