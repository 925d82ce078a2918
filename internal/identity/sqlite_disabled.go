//go:build !sqlite
// +build !sqlite

package identity

import (
	"errors"

	logx "sectorbot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Backend, error) {
	_ = cfg
	_ = log
	return nil, errors.New("sqlite identity driver not built: build with -tags sqlite")
}
