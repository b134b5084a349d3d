package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"Merem-Agent/pkg/plugin"
)

// FileStore 使用本地 JSON Lines 文件保存记忆，适合单机开发。
type FileStore struct {
	mu       sync.RWMutex
	dataFile string
	rooms    map[uuid.UUID][]plugin.Memory
}

// NewFileStore 创建文件存储并从磁盘恢复已有记录。
func NewFileStore(dataDir, table string) (*FileStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, storageError(err, "创建数据目录失败")
	}
	store := &FileStore{
		dataFile: filepath.Join(dataDir, table+".jsonl"),
		rooms:    make(map[uuid.UUID][]plugin.Memory),
	}
	if err := store.loadFromDisk(); err != nil {
		return nil, err
	}
	return store, nil
}

// CreateMemory 以追加写的方式记录一条记忆。
func (s *FileStore) CreateMemory(_ context.Context, m plugin.Memory) error {
	if err := validateMemory(m); err != nil {
		return err
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return storageError(err, "序列化记忆失败")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return storageError(err, "打开记忆文件失败")
	}
	defer file.Close()

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return storageError(err, "写入记忆文件失败")
	}
	s.rooms[m.RoomID] = append(s.rooms[m.RoomID], m)
	return nil
}

// GetMemories 返回房间内最近的记忆，按时间倒序排列。
func (s *FileStore) GetMemories(_ context.Context, q plugin.MemoryQuery) ([]plugin.Memory, error) {
	s.mu.RLock()
	stored := s.rooms[q.RoomID]
	results := make([]plugin.Memory, len(stored))
	// 倒序复制，使同一时间戳的记录后写入者在前。
	for i := range stored {
		results[len(stored)-1-i] = stored[i]
	}
	s.mu.RUnlock()

	sortNewest(results)
	if count := normalizeCount(q.Count); len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// CountMemories 返回房间内的记忆条数。
func (s *FileStore) CountMemories(_ context.Context, roomID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID]), nil
}

// Close 实现 Store 接口，文件在每次写入后已关闭。
func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadFromDisk() error {
	file, err := os.OpenFile(s.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return storageError(err, "读取记忆文件失败")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var m plugin.Memory
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			continue
		}
		s.rooms[m.RoomID] = append(s.rooms[m.RoomID], m)
	}
	if err := scanner.Err(); err != nil {
		return storageError(err, fmt.Sprintf("解析记忆文件 %s 失败", s.dataFile))
	}
	return nil
}
