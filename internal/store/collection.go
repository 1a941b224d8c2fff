package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"

	"storyweaver/internal/model"
)

// CollectionStore 故事集合的持久化，启动时加载，每次变更后整体保存
type CollectionStore interface {
	Load(ctx context.Context) ([]model.Story, error)
	Save(ctx context.Context, stories []model.Story) error
}

// MemoryStore 仅保存在内存中
type MemoryStore struct {
	mu      sync.Mutex
	stories []model.Story
	saves   int
}

func NewMemoryStore(initial ...model.Story) *MemoryStore {
	return &MemoryStore{stories: cloneAll(initial)}
}

func (m *MemoryStore) Load(ctx context.Context) ([]model.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.stories), nil
}

func (m *MemoryStore) Save(ctx context.Context, stories []model.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories = cloneAll(stories)
	m.saves++
	return nil
}

// Saves 返回保存次数
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileStore 以JSON文件保存集合，写入时先写临时文件再重命名
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) ([]model.Story, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	var stories []model.Story
	if err := json.Unmarshal(data, &stories); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return stories, nil
}

func (f *FileStore) Save(ctx context.Context, stories []model.Story) error {
	data, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".stories-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// RedisStore 将整个集合保存在一个 key 中
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) ([]model.Story, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	var stories []model.Story
	if err := json.Unmarshal(data, &stories); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return stories, nil
}

func (r *RedisStore) Save(ctx context.Context, stories []model.Story) error {
	data, err := json.Marshal(stories)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func cloneAll(stories []model.Story) []model.Story {
	out := slices.Clone(stories)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}
