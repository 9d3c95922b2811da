package gconfig

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	_ "github.com/spf13/viper/remote" // 匿名导入以支持远程配置
)

const remoteRetryInterval = 5 * time.Second

// Config 是一个配置加载器，封装了 viper 的功能。
//
// 加载优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值
type Config struct {
	v      *viper.Viper
	opts   *Options
	loaded bool
	mu     sync.RWMutex
	done   chan struct{}
	once   sync.Once
}

// Unmarshaler 定义了一个可以将配置解析到结构体中的接口。
type Unmarshaler interface {
	Unmarshal(rawVal interface{}, opts ...DecoderOptionFunc) error
}

// New 根据提供的选项创建一个 *Config 实例，配置在首次 Load 或 Unmarshal 时读取。
func New(opts ...Option) (*Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	v := viper.New()
	if options.File != "" {
		v.SetConfigFile(options.File)
	} else {
		v.SetConfigName(options.Name)
		v.SetConfigType(options.Type)
		for _, path := range options.Paths {
			v.AddConfigPath(path)
		}
	}

	v.SetEnvPrefix(options.EnvPrefix)
	v.SetEnvKeyReplacer(options.EnvReplacer)
	v.AutomaticEnv()

	return &Config{v: v, opts: options, done: make(chan struct{})}, nil
}

// Unmarshal 将已加载的配置解析到 target 结构体中。
func (c *Config) Unmarshal(target interface{}, opts ...DecoderOptionFunc) error {
	if err := c.Load(); err != nil {
		return err
	}

	final := &DecoderOption{}
	if c.opts.DecoderOption != nil {
		final = c.opts.DecoderOption.clone()
	}
	for _, opt := range opts {
		opt(final)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v.Unmarshal(target, decoderConfigOption(final))
}

// decoderConfigOption 把声明式的 DecoderOption 转换为 viper 的函数式选项。
// 只覆盖显式设置过的字段，viper 的默认钩子保留在最前面。
func decoderConfigOption(opt *DecoderOption) viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		if opt.TagName != "" {
			cfg.TagName = opt.TagName
		}
		if opt.WeaklyTypedInput != nil {
			cfg.WeaklyTypedInput = *opt.WeaklyTypedInput
		}
		if opt.ErrorUnused != nil {
			cfg.ErrorUnused = *opt.ErrorUnused
		}
		if len(opt.DecodeHooks) == 0 {
			return
		}
		hooks := make([]mapstructure.DecodeHookFunc, 0, len(opt.DecodeHooks)+1)
		if cfg.DecodeHook != nil {
			hooks = append(hooks, cfg.DecodeHook)
		}
		cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(append(hooks, opt.DecodeHooks...)...)
	}
}

// SetDefault 设置配置项的默认值。
func (c *Config) SetDefault(key string, value interface{}) {
	c.v.SetDefault(key, value)
}

// BindPFlag 把命令行参数绑定到配置项，仅当参数被显式设置时覆盖配置。
func (c *Config) BindPFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("gconfig: bind %s: nil flag", key)
	}
	return c.v.BindPFlag(key, flag)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// AllSettings 返回所有配置项的 map。
func (c *Config) AllSettings() map[string]interface{} {
	return c.v.AllSettings()
}

// ConfigFileUsed 返回实际读取的配置文件路径，未找到文件时为空。
func (c *Config) ConfigFileUsed() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Load 执行实际的配置加载操作，重复调用直接返回。
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	v := c.v
	options := c.opts

	found := true
	if err := v.ReadInConfig(); err != nil {
		// 仅当错误不是 "文件未找到" 时才返回错误
		var nfErr viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &nfErr) && !errors.As(err, &pathErr) {
			return fmt.Errorf("gconfig: read config file: %w", err)
		}
		found = false
		options.Logger.Infof("config file not found, using env and defaults (paths %v, name %s.%s)", options.Paths, options.Name, options.Type)
	}

	if options.RemoteProvider != "" && options.RemoteEndpoint != "" && options.RemotePath != "" {
		if err := v.AddRemoteProvider(options.RemoteProvider, options.RemoteEndpoint, options.RemotePath); err != nil {
			return fmt.Errorf("gconfig: add remote provider: %w", err)
		}
		v.SetConfigType(options.Type) // 远程配置也需要指定类型，如 "yaml"
		if err := v.ReadRemoteConfig(); err != nil {
			options.Logger.Warnf("failed to read remote config, proceeding with local/env config: %v", err)
		}
	}

	if options.OnChangeCallback != nil {
		c.watch(found)
	}
	c.loaded = true
	return nil
}

// Close 停止远程配置监控。本地文件监控随进程结束。
func (c *Config) Close() {
	c.once.Do(func() { close(c.done) })
}

// watch 启动对本地和远程配置的监控。
func (c *Config) watch(localFile bool) {
	v := c.v
	options := c.opts

	if localFile {
		v.OnConfigChange(func(e fsnotify.Event) {
			options.Logger.Infof("config file changed: %s", e.Name)
			options.OnChangeCallback(c)
		})
		v.WatchConfig()
	}

	if options.RemoteProvider == "" {
		return
	}
	go func() {
		for {
			select {
			case <-c.done:
				return
			default:
			}
			// WatchRemoteConfig 阻塞直到远端发生变化
			if err := v.WatchRemoteConfig(); err != nil {
				options.Logger.Warnf("watch remote config: %v", err)
				select {
				case <-c.done:
					return
				case <-time.After(remoteRetryInterval):
				}
				continue
			}
			options.Logger.Infof("remote config changed")
			options.OnChangeCallback(c)
		}
	}()
}
