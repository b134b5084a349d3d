package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/pkg/plugin"
)

const mongoCloseTimeout = 5 * time.Second

// MongoStore 每个逻辑表对应一个集合。
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoContent struct {
	Text      string         `bson:"text"`
	Action    string         `bson:"action,omitempty"`
	Source    string         `bson:"source,omitempty"`
	InReplyTo string         `bson:"in_reply_to,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
}

type mongoMemoryDocument struct {
	ID        string       `bson:"_id"`
	RoomID    string       `bson:"room_id"`
	UserID    string       `bson:"user_id"`
	AgentID   string       `bson:"agent_id"`
	Content   mongoContent `bson:"content"`
	CreatedAt int64        `bson:"created_at"`
}

// NewMongoStore 连接 MongoDB 并确保房间索引存在。
func NewMongoStore(ctx context.Context, uri, database, table string) (*MongoStore, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	if strings.TrimSpace(uri) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "mongo uri is required")
	}
	if database == "" {
		database = "merem"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storageError(err, "连接 MongoDB 失败")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, storageError(err, "无法连接到 MongoDB")
	}
	collection := client.Database(database).Collection(table)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, storageError(err, "创建 MongoDB 索引失败")
	}
	return &MongoStore{client: client, collection: collection}, nil
}

// CreateMemory 写入一条记忆。
func (s *MongoStore) CreateMemory(ctx context.Context, m plugin.Memory) error {
	if err := validateMemory(m); err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, toMongoDocument(m)); err != nil {
		return storageError(err, "MongoDB 写入记忆失败")
	}
	return nil
}

// GetMemories 返回房间内最近的记忆。
func (s *MongoStore) GetMemories(ctx context.Context, q plugin.MemoryQuery) ([]plugin.Memory, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(normalizeCount(q.Count)))
	cursor, err := s.collection.Find(ctx, bson.M{"room_id": q.RoomID.String()}, opts)
	if err != nil {
		return nil, storageError(err, "MongoDB 查询记忆失败")
	}
	defer cursor.Close(ctx)

	var results []plugin.Memory
	for cursor.Next(ctx) {
		var doc mongoMemoryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, storageError(err, "解析记忆失败")
		}
		results = append(results, doc.toMemory())
	}
	if err := cursor.Err(); err != nil {
		return nil, storageError(err, "遍历记忆失败")
	}
	return results, nil
}

// CountMemories 返回房间内的记忆条数。
func (s *MongoStore) CountMemories(ctx context.Context, roomID uuid.UUID) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"room_id": roomID.String()})
	if err != nil {
		return 0, storageError(err, "MongoDB 统计记忆失败")
	}
	return int(n), nil
}

// Close 断开 MongoDB 连接。
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongoDocument(m plugin.Memory) mongoMemoryDocument {
	doc := mongoMemoryDocument{
		ID:      m.ID.String(),
		RoomID:  m.RoomID.String(),
		UserID:  m.UserID.String(),
		AgentID: m.AgentID.String(),
		Content: mongoContent{
			Text:     m.Content.Text,
			Action:   m.Content.Action,
			Source:   m.Content.Source,
			Metadata: m.Content.Metadata,
		},
		CreatedAt: m.CreatedAt,
	}
	if m.Content.InReplyTo != nil {
		doc.Content.InReplyTo = m.Content.InReplyTo.String()
	}
	return doc
}

func (d mongoMemoryDocument) toMemory() plugin.Memory {
	m := plugin.Memory{
		ID:      parseUUID(d.ID),
		RoomID:  parseUUID(d.RoomID),
		UserID:  parseUUID(d.UserID),
		AgentID: parseUUID(d.AgentID),
		Content: plugin.Content{
			Text:     d.Content.Text,
			Action:   d.Content.Action,
			Source:   d.Content.Source,
			Metadata: d.Content.Metadata,
		},
		CreatedAt: d.CreatedAt,
	}
	if d.Content.InReplyTo != "" {
		id := parseUUID(d.Content.InReplyTo)
		m.Content.InReplyTo = &id
	}
	return m
}

func parseUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}
