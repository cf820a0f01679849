package conf

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/go-arcade/modelgate/pkg/log"
)

// Loader reads one config file plus prefixed environment variables into a struct.
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// New returns a Loader. Keys map to env vars as PREFIX_A_B for "a.b".
// An empty file means environment and defaults only.
func New(file, envPrefix string, defaults map[string]any) *Loader {
	v := viper.New()
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if file != "" {
		v.SetConfigFile(file)
	}
	return &Loader{v: v}
}

// Viper exposes the underlying instance.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load reads the file, when one was given, and unmarshals into cfg.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("cfg must be a non-nil pointer")
	}
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}
	return l.unmarshal(cfg)
}

func (l *Loader) unmarshal(cfg any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// AutomaticEnv only answers Get; binding every known key lets Unmarshal see env overrides.
	for _, key := range l.v.AllKeys() {
		_ = l.v.BindEnv(key)
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}

// Watch re-reads the file on change and hands a freshly decoded value to onChange.
// newCfg must return a pointer to a zero config value.
func (l *Loader) Watch(newCfg func() any, onChange func(cfg any)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Infow("configuration changed, reloading", "file", e.Name, "op", e.Op.String())
		cfg := newCfg()
		if err := l.unmarshal(cfg); err != nil {
			log.Warnw("failed to reload configuration", "file", e.Name, "error", err)
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}
