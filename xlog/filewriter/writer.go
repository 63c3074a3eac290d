package filewriter

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/util"
	"github.com/omeyang/logkit/xlog/rotation"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("file writer closed")

// LineWriter 按行写入的日志落地接口
type LineWriter interface {
	WriteLine(line string) error
	Close() error
}

// Stats 写入器的旁路计数
type Stats struct {
	// Writes 成功追加的消息数；brief 模式下只统计每段重复的第一条
	Writes uint64
	// Rotations 成功完成的轮转次数
	Rotations uint64
	// Failures 打开、追加、轮转、删除失败的次数
	Failures uint64
	// Collapsed brief 模式下被折叠的重复消息数
	Collapsed uint64
}

type request struct {
	fn   func()
	done chan struct{}
}

// Writer 单个日志名的串行化写入器
//
// 所有写入、轮转、删除都在同一个工作协程里按提交顺序执行，调用方阻塞直到自己的请求完成。
// 句柄状态只有两种：未打开（handle 为 nil）与已打开，只在工作协程内变化。
type Writer struct {
	cfg     Config
	rotator *rotation.Rotator
	path    string
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	reqs    chan request
	stopped chan struct{}

	writes    atomic.Uint64
	rotations atomic.Uint64
	failures  atomic.Uint64
	collapsed atomic.Uint64

	// 以下字段只在工作协程内访问
	handle storage.AppendHandle
	last   string
	runLen int
}

// New 创建写入器并启动工作协程；活动文件在第一次写入时才打开
func New(cfg Config) (*Writer, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.MkdirAll(cfg.Dir); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", cfg.Dir, err)
	}
	logger := cfg.Logger.With(zap.String("log", cfg.Name))
	rotator := rotation.NewRotator(cfg.Storage, rotation.WithExt(cfg.Ext), rotation.WithLogger(logger))
	w := &Writer{
		cfg:     cfg,
		rotator: rotator,
		path:    rotator.ActivePath(cfg.Dir, cfg.Name),
		logger:  logger,
		reqs:    make(chan request, cfg.QueueSize),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Writer) loop() {
	defer close(w.stopped)
	for req := range w.reqs {
		req.fn()
		close(req.done)
	}
}

// submit 把 fn 交给工作协程执行并等待完成
func (w *Writer) submit(fn func()) error {
	done := make(chan struct{})
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	w.reqs <- request{fn: fn, done: done}
	w.mu.RUnlock()
	<-done
	return nil
}

// Path 活动文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 写入一条消息，返回时消息已经落地（或确认失败）
func (w *Writer) Write(message string) error {
	var err error
	if serr := w.submit(func() { err = w.write(message) }); serr != nil {
		return serr
	}
	return err
}

// WriteLine 同 Write
func (w *Writer) WriteLine(line string) error {
	return w.Write(line)
}

// Flush 结束 brief 模式下尚未写出次数的重复段；standard 模式下无操作
func (w *Writer) Flush() error {
	var err error
	if serr := w.submit(func() { err = w.flushRun() }); serr != nil {
		return serr
	}
	return err
}

// DeleteLogs 删除活动文件与全部备份，返回删除失败的路径
// 已打开的句柄不会被重置，继续写入前需要调用 Reopen
func (w *Writer) DeleteLogs() []string {
	var failed []string
	if err := w.submit(func() { failed = w.deleteLogs() }); err != nil {
		// 已关闭：工作协程退出后直接删除不会产生竞争
		<-w.stopped
		return w.deleteLogs()
	}
	return failed
}

// Reopen 关闭当前句柄并重新打开活动文件
func (w *Writer) Reopen() error {
	var err error
	if serr := w.submit(func() {
		err = w.closeHandle()
		if _, oerr := w.open(); oerr != nil {
			err = multierr.Append(err, oerr)
		}
	}); serr != nil {
		return serr
	}
	return err
}

// ReadAll 读取活动文件的完整内容，文件不存在时返回空
func (w *Writer) ReadAll() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if serr := w.submit(func() { data, err = w.readAll() }); serr != nil {
		return nil, serr
	}
	return data, err
}

// Stats 返回当前计数
func (w *Writer) Stats() Stats {
	return Stats{
		Writes:    w.writes.Load(),
		Rotations: w.rotations.Load(),
		Failures:  w.failures.Load(),
		Collapsed: w.collapsed.Load(),
	}
}

// Close 结束未完成的重复段，关闭句柄并停止工作协程；之后的调用返回 ErrClosed
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	w.mu.Unlock()

	var err error
	done := make(chan struct{})
	w.reqs <- request{fn: func() {
		err = multierr.Append(w.flushRun(), w.closeHandle())
	}, done: done}
	close(w.reqs)
	<-done
	<-w.stopped
	return err
}

// AsIOWriter 把写入器包装为 io.Writer，每次 Write 作为一条消息（去掉末尾换行）
// 返回值同时实现 Sync，可以直接交给 zapcore.AddSync
func (w *Writer) AsIOWriter() io.Writer {
	return ioWriter{w: w}
}

type ioWriter struct {
	w *Writer
}

func (iw ioWriter) Write(p []byte) (int, error) {
	if err := iw.w.Write(strings.TrimSuffix(string(p), "\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (iw ioWriter) Sync() error {
	return iw.w.Flush()
}

// ---- 以下方法只在工作协程内调用 ----

func (w *Writer) write(message string) error {
	if w.cfg.Mode == Standard {
		// 换行符不计入策略
		w.rotateIfNeeded(len(message))
		return w.append(message+"\n", true)
	}

	if w.runLen > 0 && message == w.last {
		w.runLen++
		w.collapsed.Add(1)
		w.cfg.Metrics.ObserveCollapsed(w.cfg.Name)
		return nil
	}
	var errs error
	if w.runLen > 0 {
		errs = w.append(runSuffix(w.runLen), false)
	}
	w.last, w.runLen = message, 1
	w.rotateIfNeeded(len(message))
	return multierr.Append(errs, w.append(message, true))
}

func (w *Writer) flushRun() error {
	if w.runLen == 0 {
		return nil
	}
	err := w.append(runSuffix(w.runLen), false)
	w.last, w.runLen = "", 0
	return err
}

func runSuffix(n int) string {
	return " [" + strconv.Itoa(n) + " times]\n"
}

// rotateIfNeeded 按策略判断并在需要时轮转；轮转失败只计数，消息仍然写入活动文件
func (w *Writer) rotateIfNeeded(pending int) {
	fs := w.cfg.Storage
	if w.cfg.Policy.Fits(fs, w.path, pending, w.cfg.Clock()) {
		return
	}
	if err := w.closeHandle(); err != nil {
		w.fail("close", err)
	}
	// 空文件没有可移动的内容，重新创建以重置文件年龄
	if info, err := fs.Stat(w.path); err == nil && info.Size == 0 {
		if err := fs.Create(w.path, nil); err != nil {
			w.fail("create", err)
		}
		return
	}
	if _, err := w.rotator.Rotate(w.cfg.Dir, w.cfg.Name, w.cfg.Policy); err != nil {
		w.fail("rotate", err)
		return
	}
	w.rotations.Add(1)
	w.cfg.Metrics.ObserveRotation(w.cfg.Name)
}

// append 追加 data；message 表示 data 是一条新消息的开始，用于计数
func (w *Writer) append(data string, message bool) error {
	h, err := w.open()
	if err != nil {
		w.fail("open", err)
		return err
	}
	if _, err := io.WriteString(h, data); err != nil {
		// 句柄可能已失效，下次写入重新打开
		_ = w.closeHandle()
		err = fmt.Errorf("append to %s: %w", w.path, err)
		w.fail("append", err)
		return err
	}
	if message {
		w.writes.Add(1)
		w.cfg.Metrics.ObserveWrite(w.cfg.Name, len(data))
	}
	return nil
}

func (w *Writer) open() (storage.AppendHandle, error) {
	if w.handle != nil {
		return w.handle, nil
	}
	var h storage.AppendHandle
	err := util.Do(w.cfg.Retry, func() error {
		var err error
		h, err = w.cfg.Storage.OpenAppend(w.path)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", w.path, err)
	}
	w.handle = h
	return h, nil
}

func (w *Writer) closeHandle() error {
	if w.handle == nil {
		return nil
	}
	h := w.handle
	w.handle = nil
	if err := h.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) deleteLogs() []string {
	failed := w.rotator.DeleteAll(w.cfg.Dir, w.cfg.Name)
	for _, p := range failed {
		w.fail("delete", fmt.Errorf("delete %s failed", p))
	}
	return failed
}

func (w *Writer) readAll() ([]byte, error) {
	data, err := w.cfg.Storage.Contents(w.path)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", w.path, err)
	}
	return data, nil
}

func (w *Writer) fail(op string, err error) {
	w.failures.Add(1)
	w.cfg.Metrics.ObserveFailure(w.cfg.Name, op)
	w.logger.Debug("log file operation failed", zap.String("op", op), zap.Error(err))
}

// Mode 写入模式
func (w *Writer) Mode() Mode {
	return w.cfg.Mode
}
