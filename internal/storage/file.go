package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "todoreminder/pkg/logx"
)

// fileStore writes two JSON Lines files next to the configured path:
//
//	<name>.deliveries.jsonl  delivery records, append-only
//	<name>.dedup.jsonl       dedup windows, last record per key wins
//
// The dedup file is replayed and rewritten with only live windows on open.
// The notifier bounds its window map, so that is the only compaction needed.
type fileStore struct {
	log logx.Logger

	mu         sync.Mutex
	deliveries *jsonl
	dedupLog   *jsonl
	windows    map[string]time.Time
}

type windowRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"` // unix milli
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, name)

	windows, err := rewriteWindows(prefix+".dedup.jsonl", time.Now())
	if err != nil {
		return nil, err
	}
	dl, err := openJSONL(prefix + ".dedup.jsonl")
	if err != nil {
		return nil, err
	}
	al, err := openJSONL(prefix + ".deliveries.jsonl")
	if err != nil {
		_ = dl.close()
		return nil, err
	}
	log.Debug("file storage opened", logx.String("prefix", prefix), logx.Int("dedup_windows", len(windows)))
	return &fileStore{log: log, deliveries: al, dedupLog: dl, windows: windows}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.deliveries.close(), s.dedupLog.close())
}

func (s *fileStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries.append(d)
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dedupLog.append(windowRecord{Key: key, Until: until.UnixMilli()}); err != nil {
		return err
	}
	s.windows[key] = time.UnixMilli(until.UnixMilli())
	return nil
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.windows[strings.TrimSpace(key)]
	return until, ok, nil
}

// rewriteWindows replays the dedup file and replaces it with one record per
// window still open at now. Undecodable lines are dropped.
func rewriteWindows(path string, now time.Time) (map[string]time.Time, error) {
	windows := map[string]time.Time{}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return windows, nil
	case err != nil:
		return nil, err
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r windowRecord
		if json.Unmarshal(sc.Bytes(), &r) != nil || r.Key == "" {
			continue
		}
		windows[r.Key] = time.UnixMilli(r.Until)
	}
	_ = f.Close()
	if err := sc.Err(); err != nil {
		return nil, err
	}

	tmp := path + ".tmp"
	out, err := openJSONLAt(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
	if err != nil {
		return nil, err
	}
	for k, until := range windows {
		if until.Before(now) {
			delete(windows, k)
			continue
		}
		if err := out.append(windowRecord{Key: k, Until: until.UnixMilli()}); err != nil {
			_ = out.close()
			return nil, err
		}
	}
	if err := out.close(); err != nil {
		return nil, err
	}
	return windows, os.Rename(tmp, path)
}

// jsonl appends one JSON document per line.
type jsonl struct {
	f   *os.File
	enc *json.Encoder
}

func openJSONL(path string) (*jsonl, error) {
	return openJSONLAt(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
}

func openJSONLAt(path string, flag int) (*jsonl, error) {
	f, err := os.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, err
	}
	return &jsonl{f: f, enc: json.NewEncoder(f)}, nil
}

func (j *jsonl) append(v any) error {
	if j.f == nil {
		return os.ErrClosed
	}
	return j.enc.Encode(v)
}

func (j *jsonl) close() error {
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}
