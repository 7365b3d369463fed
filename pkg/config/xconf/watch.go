package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// WatchCallback 在每次重载后调用，err 非 nil 表示重载失败（旧配置仍生效）
// 或监视本身出错。回调在内部 goroutine 中串行执行。
type WatchCallback func(cfg Config, err error)

// WatchOption 配置 Watcher。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间：该时间内的多次变更只触发一次重载。<= 0 时忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 监视配置文件并自动重载。
type Watcher struct {
	cfg      Config
	callback WatchCallback
	debounce time.Duration
	dir      string
	filename string

	// cbMu 串行化回调，并保证 Run 返回后不再有回调。
	cbMu    sync.Mutex
	stopped bool
}

// NewWatcher 创建监视器。cfg 必须从文件创建。
func NewWatcher(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}
	if cfg == nil || cfg.Path() == "" {
		return nil, ErrNotReloadable
	}
	w := &Watcher{
		cfg:      cfg,
		callback: callback,
		debounce: DefaultDebounce,
		dir:      filepath.Dir(cfg.Path()),
		filename: filepath.Base(cfg.Path()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run 监视直到 ctx 结束，返回 nil。无法建立监视时返回错误。
// Run 只能调用一次，返回后不再有回调执行。
//
// 设计决策: 监视所在目录而非文件本身。编辑器和 K8s ConfigMap 的原子更新
// 会替换文件，直接监视文件会在第一次替换后丢失后续事件。
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		return errors.Join(fmt.Errorf("xconf: watch %s: %w", w.dir, err), fsw.Close())
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		w.cbMu.Lock()
		w.stopped = true
		w.cbMu.Unlock()
	}()
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.notify(fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// relevant 只关心目标文件的写入、创建与 rename（原子写入）。
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != w.filename {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	w.notify(w.cfg.Reload())
}

func (w *Watcher) notify(err error) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	if w.stopped {
		return
	}
	w.callback(w.cfg, err)
}
