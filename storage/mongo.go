package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omeyang/logkit/util"
)

// DefaultMongoTimeout 单次 mongo 操作的默认超时时间
const DefaultMongoTimeout = 5 * time.Second

// mongoFile 一个日志文件对应一个文档，_id 即文件路径
type mongoFile struct {
	Path    string    `bson:"_id"`
	Dir     string    `bson:"dir"`
	Name    string    `bson:"name"`
	Content string    `bson:"content"`
	Size    int64     `bson:"size"`
	Created time.Time `bson:"created_at"`
}

// Mongo 基于 MongoDB 集合的 Storage 实现
// 适合没有可写本地磁盘的宿主；目录只是文档上的 dir 字段，MkdirAll 不做任何事
type Mongo struct {
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// MongoOption Mongo 存储的可选配置
type MongoOption func(*Mongo)

// WithMongoTimeout 设置单次操作的超时时间
func WithMongoTimeout(timeout time.Duration) MongoOption {
	return func(m *Mongo) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithMongoClock 注入时钟
func WithMongoClock(now func() time.Time) MongoOption {
	return func(m *Mongo) {
		m.now = now
	}
}

// NewMongo 使用指定集合创建存储
func NewMongo(coll *mongo.Collection, opts ...MongoOption) *Mongo {
	m := &Mongo{coll: coll, timeout: DefaultMongoTimeout, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectMongo 按重试策略建立 mongo 连接
// basic 是基础配置，opts 依次作用于 basic，注意 mongo-go-driver 1.15 之后选项有顺序要求
func ConnectMongo(ctx context.Context, retryPolicy util.RetryPolicy, basic *options.ClientOptions,
	opts ...func(*options.ClientOptions),
) (*mongo.Client, error) {
	for _, opt := range opts {
		opt(basic)
	}
	if retryPolicy == nil {
		retryPolicy = &util.NoRetryPolicy{}
	}

	for attempt := 1; ; attempt++ {
		client, err := mongo.Connect(ctx, basic)
		if err == nil {
			return client, nil
		}
		if !retryPolicy.ShouldRetry(attempt, err) {
			return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryPolicy.WaitDuration(attempt)):
		}
	}
}

func (m *Mongo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *Mongo) find(p string, projection bson.M) (mongoFile, error) {
	ctx, cancel := m.ctx()
	defer cancel()
	var doc mongoFile
	findOpts := options.FindOne()
	if projection != nil {
		findOpts.SetProjection(projection)
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": p}, findOpts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, ErrNotExist
	}
	return doc, err
}

// Exists 判断文件文档是否存在
func (m *Mongo) Exists(p string) bool {
	_, err := m.find(path.Clean(p), bson.M{"_id": 1})
	return err == nil
}

// Create 创建或替换文件文档
func (m *Mongo) Create(p string, contents []byte) error {
	p = path.Clean(p)
	ctx, cancel := m.ctx()
	defer cancel()
	doc := mongoFile{
		Path:    p,
		Dir:     path.Dir(p),
		Name:    path.Base(p),
		Content: string(contents),
		Size:    int64(len(contents)),
		Created: m.now(),
	}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": p}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	return nil
}

// Contents 读取完整内容
func (m *Mongo) Contents(p string) ([]byte, error) {
	p = path.Clean(p)
	doc, err := m.find(p, nil)
	if err != nil {
		return nil, fmt.Errorf("contents %s: %w", p, err)
	}
	return []byte(doc.Content), nil
}

// List 列出 dir 字段等于 dir 的文件名称
func (m *Mongo) List(dir string) ([]string, error) {
	dir = path.Clean(dir)
	ctx, cancel := m.ctx()
	defer cancel()
	findOpts := options.Find().
		SetProjection(bson.M{"name": 1}).
		SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := m.coll.Find(ctx, bson.M{"dir": dir}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	defer cursor.Close(ctx)

	var docs []mongoFile
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Name)
	}
	return names, nil
}

// Remove 删除文件文档
func (m *Mongo) Remove(p string) error {
	p = path.Clean(p)
	ctx, cancel := m.ctx()
	defer cancel()
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": p})
	if err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("remove %s: %w", p, ErrNotExist)
	}
	return nil
}

// Stat 读取大小与创建时间
func (m *Mongo) Stat(p string) (FileInfo, error) {
	p = path.Clean(p)
	doc, err := m.find(p, bson.M{"size": 1, "created_at": 1})
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return FileInfo{Size: doc.Size, Created: doc.Created}, nil
}

// OpenAppend 返回按路径追加的句柄，文档不存在时首次写入会创建它
func (m *Mongo) OpenAppend(p string) (AppendHandle, error) {
	return &mongoHandle{m: m, path: path.Clean(p)}, nil
}

// MkdirAll 目录是虚拟的，无需创建
func (m *Mongo) MkdirAll(string) error {
	return nil
}

// appendPipeline 用聚合管道更新在服务端拼接内容，避免读-改-写
func (m *Mongo) appendPipeline(p string, data []byte) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "dir", Value: path.Dir(p)},
			{Key: "name", Value: path.Base(p)},
			{Key: "content", Value: bson.D{{Key: "$concat", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$content", ""}}},
				string(data),
			}}}},
			{Key: "size", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$size", int64(0)}}},
				int64(len(data)),
			}}}},
			{Key: "created_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$created_at", m.now()}}}},
		}}},
	}
}

type mongoHandle struct {
	m      *Mongo
	path   string
	mu     sync.Mutex
	closed bool
}

func (h *mongoHandle) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("append %s: file already closed", h.path)
	}
	ctx, cancel := h.m.ctx()
	defer cancel()
	_, err := h.m.coll.UpdateOne(ctx, bson.M{"_id": h.path}, h.m.appendPipeline(h.path, data),
		options.Update().SetUpsert(true))
	if err != nil {
		return 0, fmt.Errorf("append %s: %w", h.path, err)
	}
	return len(data), nil
}

func (h *mongoHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
