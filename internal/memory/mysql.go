package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"Merem-Agent/deploy/migrations"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

var embeddedMigrations fs.FS = migrations.Files

// MySQLConfig 描述 MySQL 连接池参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MySQLStore 将记忆保存在 MySQL 的 memories 表中，table_name 列区分逻辑表。
type MySQLStore struct {
	db    *sql.DB
	table string
}

// NewMySQLStore 创建连接池并执行迁移。
func NewMySQLStore(ctx context.Context, cfg MySQLConfig, table string) (*MySQLStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &MySQLStore{db: db, table: table}
	if err := store.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openDatabase(ctx context.Context, cfg MySQLConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, storageError(err, "连接 MySQL 失败")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageError(err, "无法连接到 MySQL")
	}
	return db, nil
}

// CreateMemory 写入一条记忆。
func (s *MySQLStore) CreateMemory(ctx context.Context, m plugin.Memory) error {
	if err := validateMemory(m); err != nil {
		return err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return storageError(err, "序列化记忆内容失败")
	}
	const stmt = `INSERT INTO memories
    (id, table_name, room_id, user_id, agent_id, content, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		m.ID.String(),
		s.table,
		m.RoomID.String(),
		m.UserID.String(),
		m.AgentID.String(),
		string(content),
		m.CreatedAt,
	); err != nil {
		return storageError(err, "写入记忆失败")
	}
	return nil
}

// GetMemories 返回房间内最近的记忆。
func (s *MySQLStore) GetMemories(ctx context.Context, q plugin.MemoryQuery) ([]plugin.Memory, error) {
	const query = `SELECT id, room_id, user_id, agent_id, content, created_at
    FROM memories WHERE table_name = ? AND room_id = ?
    ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, s.table, q.RoomID.String(), normalizeCount(q.Count))
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
func (s *MySQLStore) CountMemories(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE table_name = ? AND room_id = ?`,
		s.table, roomID.String(),
	).Scan(&count)
	if err != nil {
		return 0, storageError(err, "统计记忆失败")
	}
	return count, nil
}

// Close 关闭连接池。
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

type migrationFile struct {
	version    string
	name       string
	statements []string
}

func (s *MySQLStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`); err != nil {
		return storageError(err, "创建 schema_migrations 表失败")
	}

	applied, err := s.loadAppliedVersions(ctx)
	if err != nil {
		return err
	}

	files, err := loadMigrationFiles()
	if err != nil {
		return err
	}

	for _, migration := range files {
		if _, ok := applied[migration.version]; ok {
			continue
		}
		if err := s.applyMigration(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) loadAppliedVersions(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, storageError(err, "查询 schema_migrations 失败")
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, storageError(err, "解析 schema_migrations 失败")
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err, "遍历 schema_migrations 失败")
	}
	return applied, nil
}

func (s *MySQLStore) applyMigration(ctx context.Context, migration migrationFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err, "开启迁移事务失败")
	}

	for _, stmt := range migration.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return storageError(err, fmt.Sprintf("执行迁移 %s 失败", migration.name))
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, migration.version, time.Now().Unix()); err != nil {
		tx.Rollback()
		return storageError(err, "记录迁移版本失败")
	}

	if err := tx.Commit(); err != nil {
		return storageError(err, "提交迁移事务失败")
	}
	return nil
}

func loadMigrationFiles() ([]migrationFile, error) {
	entries, err := fs.ReadDir(embeddedMigrations, ".")
	if err != nil {
		return nil, storageError(err, "读取迁移目录失败")
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := fs.ReadFile(embeddedMigrations, name)
		if err != nil {
			return nil, storageError(err, fmt.Sprintf("读取迁移文件 %s 失败", name))
		}
		statements := splitSQLStatements(string(content))
		if len(statements) == 0 {
			continue
		}
		files = append(files, migrationFile{
			version:    parseMigrationVersion(name),
			name:       name,
			statements: statements,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].version == files[j].version {
			return files[i].name < files[j].name
		}
		return files[i].version < files[j].version
	})
	return files, nil
}

func splitSQLStatements(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(content, ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func parseMigrationVersion(name string) string {
	if idx := strings.IndexRune(name, '_'); idx > 0 {
		return name[:idx]
	}
	if dot := strings.IndexRune(name, '.'); dot > 0 {
		return name[:dot]
	}
	return name
}
