package identity

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	logx "sectorbot/pkg/logx"
)

// fileBackend keeps one JSON record per key under a directory:
//
//	<dir>/<kind>_<tenantID>.json  ->  {"message_id": 123}
//
// Writes go through a temp file + rename so a crash never leaves a
// half-written record.
type fileBackend struct {
	dir string
	log logx.Logger
}

type fileRecord struct {
	MessageID int64 `json:"message_id"`
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("identity.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileBackend{dir: dir, log: log}, nil
}

func (b *fileBackend) recordPath(key Key) string {
	return filepath.Join(b.dir, key.String()+".json")
}

func (b *fileBackend) Get(ctx context.Context, key Key) (int64, bool, error) {
	_ = ctx
	raw, err := os.ReadFile(b.recordPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record is treated as absent; the artifact will be
		// recreated and the record overwritten.
		b.log.Warn("corrupt identity record", logx.String("key", key.String()), logx.Err(err))
		return 0, false, nil
	}
	if rec.MessageID == 0 {
		return 0, false, nil
	}
	return rec.MessageID, true, nil
}

func (b *fileBackend) Put(ctx context.Context, key Key, messageID int64) error {
	_ = ctx
	raw, err := json.Marshal(fileRecord{MessageID: messageID})
	if err != nil {
		return err
	}
	path := b.recordPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (b *fileBackend) Close() error { return nil }
