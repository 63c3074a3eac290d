package storage

import (
	"fmt"
	"path"
	"sort"
	"sync"
	"time"
)

// Op 内存存储的操作名，用于故障注入
type Op string

// 可注入故障的操作
const (
	OpExists     Op = "exists"
	OpCreate     Op = "create"
	OpContents   Op = "contents"
	OpList       Op = "list"
	OpRemove     Op = "remove"
	OpStat       Op = "stat"
	OpOpenAppend Op = "open_append"
	OpAppend     Op = "append"
	OpMkdir      Op = "mkdir"
)

type memFile struct {
	data    []byte
	created time.Time
}

type faultKey struct {
	op   Op
	path string
}

// Memory 内存中的 Storage 实现，并发安全
// 路径统一按 "/" 分隔处理，便于测试中构造确定的目录结构
type Memory struct {
	mu     sync.Mutex
	files  map[string]*memFile
	dirs   map[string]struct{}
	faults map[faultKey]error
	now    func() time.Time
}

// MemoryOption 内存存储的可选配置
type MemoryOption func(*Memory)

// WithMemoryClock 注入时钟，文件创建时间取自该时钟
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory 创建内存存储
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		files:  make(map[string]*memFile),
		dirs:   make(map[string]struct{}),
		faults: make(map[faultKey]error),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailOn 令指定操作在指定路径上返回 err；err 为 nil 时清除注入
// path 为空表示对该操作的所有路径生效
func (m *Memory) FailOn(op Op, p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := faultKey{op: op, path: clean(p)}
	if p == "" {
		key.path = ""
	}
	if err == nil {
		delete(m.faults, key)
		return
	}
	m.faults[key] = err
}

// SetCreated 修改文件的创建时间
func (m *Memory) SetCreated(p string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return fmt.Errorf("set created %s: %w", p, ErrNotExist)
	}
	f.created = t
	return nil
}

// Paths 返回当前所有文件路径，已排序
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (m *Memory) fault(op Op, p string) error {
	if err, ok := m.faults[faultKey{op: op, path: p}]; ok {
		return err
	}
	if err, ok := m.faults[faultKey{op: op}]; ok {
		return err
	}
	return nil
}

// Exists 判断路径是否存在
func (m *Memory) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if m.fault(OpExists, p) != nil {
		return false
	}
	_, ok := m.files[p]
	return ok
}

// Create 创建或替换文件，创建时间重置为当前时钟
func (m *Memory) Create(p string, contents []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if err := m.fault(OpCreate, p); err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	m.files[p] = &memFile{data: append([]byte(nil), contents...), created: m.now()}
	m.dirs[path.Dir(p)] = struct{}{}
	return nil
}

// Contents 读取完整内容
func (m *Memory) Contents(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if err := m.fault(OpContents, p); err != nil {
		return nil, fmt.Errorf("contents %s: %w", p, err)
	}
	f, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("contents %s: %w", p, ErrNotExist)
	}
	return append([]byte(nil), f.data...), nil
}

// List 列出目录下的文件名称
func (m *Memory) List(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = clean(dir)
	if err := m.fault(OpList, dir); err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if _, ok := m.dirs[dir]; !ok {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotExist)
	}
	var names []string
	for p := range m.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove 删除文件
func (m *Memory) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if err := m.fault(OpRemove, p); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("remove %s: %w", p, ErrNotExist)
	}
	delete(m.files, p)
	return nil
}

// Stat 读取大小与创建时间
func (m *Memory) Stat(p string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if err := m.fault(OpStat, p); err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	f, ok := m.files[p]
	if !ok {
		return FileInfo{}, fmt.Errorf("stat %s: %w", p, ErrNotExist)
	}
	return FileInfo{Size: int64(len(f.data)), Created: f.created}, nil
}

// OpenAppend 以追加方式打开文件，不存在时创建
func (m *Memory) OpenAppend(p string) (AppendHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = clean(p)
	if err := m.fault(OpOpenAppend, p); err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	if _, ok := m.dirs[path.Dir(p)]; !ok {
		return nil, fmt.Errorf("open %s: %w", p, ErrNotExist)
	}
	if _, ok := m.files[p]; !ok {
		m.files[p] = &memFile{created: m.now()}
	}
	return &memHandle{m: m, path: p}, nil
}

// MkdirAll 确保目录存在
func (m *Memory) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = clean(dir)
	if err := m.fault(OpMkdir, dir); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	for d := dir; ; d = path.Dir(d) {
		m.dirs[d] = struct{}{}
		if d == "/" || d == "." {
			break
		}
	}
	return nil
}

// memHandle 按路径追加，文件被删除后再写入会重新创建
type memHandle struct {
	m      *Memory
	path   string
	closed bool
}

func (h *memHandle) Write(p []byte) (int, error) {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.closed {
		return 0, fmt.Errorf("append %s: file already closed", h.path)
	}
	if err := h.m.fault(OpAppend, h.path); err != nil {
		return 0, fmt.Errorf("append %s: %w", h.path, err)
	}
	f, ok := h.m.files[h.path]
	if !ok {
		f = &memFile{created: h.m.now()}
		h.m.files[h.path] = f
	}
	f.data = append(f.data, p...)
	return len(p), nil
}

func (h *memHandle) Close() error {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	h.closed = true
	return nil
}

func clean(p string) string {
	return path.Clean(p)
}
