package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

type localProber struct {
	path string
}

func newLocal(conf LocalConf) (*localProber, error) {
	if strings.TrimSpace(conf.Path) == "" {
		return nil, errors.New("local storage path is required")
	}
	return &localProber{path: conf.Path}, nil
}

func (l *localProber) Provider() string { return StorageLocal }

func (l *localProber) Location() string { return l.path }

// Probe requires an existing, writable directory.
func (l *localProber) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", l.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", l.path)
	}
	f, err := os.CreateTemp(l.path, ".modelgate-probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", l.path, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
