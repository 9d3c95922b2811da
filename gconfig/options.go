package gconfig

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sofiworker/npcap/glog"
)

// DecoderOption 是一个用于在 Unmarshal 时配置解码器行为的声明式结构体。
type DecoderOption struct {
	// TagName 指定用于 unmarshal 的结构体标签名。
	TagName          string
	WeaklyTypedInput *bool // 使用指针以区分 "未设置" 和 "设置为 false"。
	ErrorUnused      *bool // 如果为 true，配置中存在结构体未使用的键时报错。
	// DecodeHooks 在 viper 默认钩子（时长、逗号分隔切片）之后执行。
	DecodeHooks []mapstructure.DecodeHookFunc
}

func (o *DecoderOption) clone() *DecoderOption {
	cp := *o
	cp.DecodeHooks = append([]mapstructure.DecodeHookFunc(nil), o.DecodeHooks...)
	return &cp
}

// DecoderOptionFunc 是一个用于修改 DecoderOption 的函数。
type DecoderOptionFunc func(*DecoderOption)

// Options 保存了创建 viper 实例所需的所有配置。
type Options struct {
	// 本地文件配置
	Name  string   // 配置文件名 (不带扩展名)
	Type  string   // 配置文件类型 (e.g., "yaml", "json")
	Paths []string // 配置文件搜索路径
	File  string   // 完整的配置文件路径，如果设置，将忽略 Name, Type, Paths

	// 环境变量配置
	EnvPrefix   string
	EnvReplacer *strings.Replacer

	DecoderOption *DecoderOption

	// 远程配置源 (e.g., etcd, consul)
	RemoteProvider string
	RemoteEndpoint string
	RemotePath     string

	// OnChangeCallback 在本地或远程配置变化时触发。设置后才会启动监控。
	OnChangeCallback func(c Unmarshaler)

	Logger glog.Logger
}

// Option 是一个用于修改 Options 的函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Name:        "npcap",
		Type:        "yaml",
		Paths:       []string{".", "/etc/npcap/"},
		EnvPrefix:   "NPCAP",
		EnvReplacer: strings.NewReplacer(".", "_", "-", "_"),
		DecoderOption: &DecoderOption{
			TagName: "yaml",
		},
		Logger: glog.Named("gconfig"),
	}
}

// WithFile 指定一个完整的配置文件路径。
func WithFile(path string) Option {
	return func(o *Options) {
		o.File = path
	}
}

// WithName 设置配置文件名。
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithType 设置配置文件类型。
func WithType(typ string) Option {
	return func(o *Options) {
		o.Type = typ
	}
}

// WithPaths 替换配置文件搜索路径。
func WithPaths(paths ...string) Option {
	return func(o *Options) {
		o.Paths = paths
	}
}

// WithEnvPrefix 设置环境变量前缀。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}

// WithRemoteProvider 设置远程配置。
// provider: "etcd3", "consul", "firestore", etc.
// endpoint: "http://127.0.0.1:2379"
// path: "/config/npcap.yaml"
func WithRemoteProvider(provider, endpoint, path string) Option {
	return func(o *Options) {
		o.RemoteProvider = provider
		o.RemoteEndpoint = endpoint
		o.RemotePath = path
	}
}

// WithOnChangeCallback 设置一个在配置变更时触发的回调。
func WithOnChangeCallback(cb func(c Unmarshaler)) Option {
	return func(o *Options) {
		o.OnChangeCallback = cb
	}
}

func WithLogger(logger glog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithDecoderOptions 设置默认的解码器选项。
func WithDecoderOptions(opts ...DecoderOptionFunc) Option {
	return func(o *Options) {
		if o.DecoderOption == nil {
			o.DecoderOption = &DecoderOption{}
		}
		for _, opt := range opts {
			opt(o.DecoderOption)
		}
	}
}

// WithTagName 返回一个设置了 TagName 的 DecoderOptionFunc。
func WithTagName(tagName string) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.TagName = tagName
	}
}

func WithWeaklyTypedInput(enabled bool) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.WeaklyTypedInput = &enabled
	}
}

func WithErrorUnused(enabled bool) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.ErrorUnused = &enabled
	}
}

// WithDecodeHooks 追加自定义解码钩子，例如把名称映射为枚举值。
func WithDecodeHooks(hooks ...mapstructure.DecodeHookFunc) DecoderOptionFunc {
	return func(opt *DecoderOption) {
		opt.DecodeHooks = append(opt.DecodeHooks, hooks...)
	}
}
