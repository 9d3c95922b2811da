package main

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"

	"github.com/sofiworker/npcap/gconfig"
	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/layers"
)

// appConfig 对应 npcap.yaml。
type appConfig struct {
	Log   logConfig `yaml:"log"`
	Input string    `yaml:"input"`
	// LinkType 覆盖文件头中的链路类型，未设置时为 nil。
	LinkType *layers.LinkType `yaml:"link_type"`
	Limit    int              `yaml:"limit"`
	Decode   decodeConfig     `yaml:"decode"`
	Tracker  trackerConfig    `yaml:"tracker"`
	Store    storeConfig      `yaml:"store"`
}

type logConfig struct {
	Level    glog.Level    `yaml:"level"`
	Encoding glog.Encoding `yaml:"encoding"`
	Files    []string      `yaml:"files"`
	// TimeFormat 是 Go 时间布局，为空时使用 glog 默认格式。
	TimeFormat string `yaml:"time_format"`
	// Rotation 只对 Files 生效。
	Rotation *rotationConfig `yaml:"rotation"`
}

type rotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxAgeDays int  `yaml:"max_age_days"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type decodeConfig struct {
	NoCopy bool `yaml:"no_copy"`
	DNS    bool `yaml:"dns"`
}

type trackerConfig struct {
	MaxFlows int `yaml:"max_flows"`
}

// storeConfig 控制 sqlite 连接记录，Path 为空时不写库。
type storeConfig struct {
	Path  string `yaml:"path"`
	Batch int    `yaml:"batch"`
}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	"log.level":         "log-level",
	"limit":             "limit",
	"decode.no_copy":    "no-copy",
	"decode.dns":        "dns",
	"tracker.max_flows": "max-flows",
	"store.path":        "db",
}

var (
	levelType    = reflect.TypeOf(glog.Level(0))
	linkTypeType = reflect.TypeOf(layers.LinkType(0))
)

// levelHook decodes level names such as "debug" or "WARN".
func levelHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != levelType {
			return data, nil
		}
		return glog.ParseLevel(reflect.ValueOf(data).String())
	}
}

// linkTypeHook decodes link type names such as "ethernet" or "linux_sll".
// Numeric values fall through to the default integer decoding.
func linkTypeHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != linkTypeType {
			return data, nil
		}
		return layers.ParseLinkType(reflect.ValueOf(data).String())
	}
}

func setDefaults(c *gconfig.Config) {
	c.SetDefault("log.level", "info")
	c.SetDefault("log.encoding", string(glog.ConsoleEncoding))
	c.SetDefault("decode.dns", true)
	c.SetDefault("store.batch", 256)
}

// loadConfig reads the config file, environment and flags into an
// appConfig. onChange, when set, receives the reloaded config after the
// file changes.
func loadConfig(file string, flags *pflag.FlagSet, onChange func(*appConfig)) (*appConfig, *gconfig.Config, error) {
	opts := []gconfig.Option{
		gconfig.WithDecoderOptions(gconfig.WithDecodeHooks(levelHook(), linkTypeHook())),
	}
	if file != "" {
		opts = append(opts, gconfig.WithFile(file))
	}
	if onChange != nil {
		opts = append(opts, gconfig.WithOnChangeCallback(func(u gconfig.Unmarshaler) {
			cfg := &appConfig{}
			if err := u.Unmarshal(cfg); err != nil {
				glog.Warn("reload config", "error", err)
				return
			}
			onChange(cfg)
		}))
	}

	loader, err := gconfig.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	setDefaults(loader)
	if flags != nil {
		for key, name := range flagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := loader.BindPFlag(key, f); err != nil {
				return nil, nil, err
			}
		}
	}

	cfg := &appConfig{}
	if err := loader.Unmarshal(cfg); err != nil {
		loader.Close()
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, loader, nil
}

func (c logConfig) options() []glog.Option {
	opts := []glog.Option{glog.WithLevel(c.Level), glog.WithConsole(len(c.Files) == 0)}
	if c.Encoding != "" {
		opts = append(opts, glog.WithEncoding(c.Encoding))
	}
	if c.TimeFormat != "" {
		opts = append(opts, glog.WithTimeFormat(c.TimeFormat))
	}
	if len(c.Files) > 0 {
		opts = append(opts, glog.WithOutputPaths(c.Files...))
	}
	if r := c.Rotation; r != nil {
		opts = append(opts, glog.WithRotation(r.MaxSizeMB, r.MaxAgeDays, r.MaxBackups, r.Compress, true))
	}
	return opts
}

// apply 重新配置全局日志。
func (c logConfig) apply() error {
	return glog.Configure(c.options()...)
}

func (c decodeConfig) options() []layers.Option {
	var opts []layers.Option
	if c.NoCopy {
		opts = append(opts, layers.WithNoCopy())
	}
	if !c.DNS {
		opts = append(opts, layers.WithoutDNS())
	}
	return opts
}
