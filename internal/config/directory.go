package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	MinCustomerIDLength = 6
	MaxCustomerIDLength = 64
)

// DirectoryConfig holds directory tunables that may change at runtime.
type DirectoryConfig struct {
	IDLength      int
	IDMaxAttempts int
	Notifications NotificationConfig
}

type NotificationConfig struct {
	OnCreate bool
	OnUpdate bool
	Subject  string
}

func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		IDLength:      12,
		IDMaxAttempts: 16,
		Notifications: NotificationConfig{
			OnCreate: false,
			OnUpdate: false,
			Subject:  "Your customer record",
		},
	}
}

type DirectoryConfigHolder struct {
	current atomic.Value // holds DirectoryConfig
}

// NewDirectoryConfigHolder reads directory.yml when present and watches it for changes.
func NewDirectoryConfigHolder(log *zap.Logger) (*DirectoryConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.directory")

	v := viper.New()

	v.SetConfigName("directory")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/customer-directory")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DIRECTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultDirectoryConfig()
	v.SetDefault("directory.id_length", defaults.IDLength)
	v.SetDefault("directory.id_max_attempts", defaults.IDMaxAttempts)
	v.SetDefault("directory.notifications.on_create", defaults.Notifications.OnCreate)
	v.SetDefault("directory.notifications.on_update", defaults.Notifications.OnUpdate)
	v.SetDefault("directory.notifications.subject", defaults.Notifications.Subject)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg := readDirectoryConfig(v)
	if err := ValidateDirectoryConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticDirectoryConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := readDirectoryConfig(v)
			if err := ValidateDirectoryConfig(updated); err != nil {
				log.Warn("invalid directory config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("directory config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func readDirectoryConfig(v *viper.Viper) DirectoryConfig {
	return DirectoryConfig{
		IDLength:      v.GetInt("directory.id_length"),
		IDMaxAttempts: v.GetInt("directory.id_max_attempts"),
		Notifications: NotificationConfig{
			OnCreate: v.GetBool("directory.notifications.on_create"),
			OnUpdate: v.GetBool("directory.notifications.on_update"),
			Subject:  strings.TrimSpace(v.GetString("directory.notifications.subject")),
		},
	}
}

// NewStaticDirectoryConfigHolder returns a holder that never reloads.
func NewStaticDirectoryConfigHolder(cfg DirectoryConfig) *DirectoryConfigHolder {
	holder := &DirectoryConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *DirectoryConfigHolder) Get() DirectoryConfig {
	if h == nil {
		return DefaultDirectoryConfig()
	}
	return h.current.Load().(DirectoryConfig)
}

func ValidateDirectoryConfig(cfg DirectoryConfig) error {
	if cfg.IDLength < MinCustomerIDLength || cfg.IDLength > MaxCustomerIDLength {
		return fmt.Errorf("directory.id_length must be between %d and %d", MinCustomerIDLength, MaxCustomerIDLength)
	}
	if cfg.IDMaxAttempts <= 0 {
		return errors.New("directory.id_max_attempts must be positive")
	}
	return nil
}
