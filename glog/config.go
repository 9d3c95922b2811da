package glog

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig 定义了日志轮转的配置。
type RotationConfig struct {
	MaxSize    int // MB
	MaxAge     int // days
	MaxBackups int
	LocalTime  bool
	Compress   bool
}

// EncoderConfig 定义了结构化日志中各个字段的键名。
type EncoderConfig struct {
	MessageKey    string `json:"message_key"`
	LevelKey      string `json:"level_key"`
	TimeKey       string `json:"time_key"`
	CallerKey     string `json:"caller_key"`
	StacktraceKey string `json:"stacktrace_key"`
}

// Config 是一个通用的日志配置结构体。
type Config struct {
	Level             Level
	Encoding          Encoding
	InitialFields     map[string]interface{}
	EnableConsole     bool
	FilePaths         []string
	EncoderConfig     *EncoderConfig
	RotationConfig    *RotationConfig
	DisableCaller     bool
	DisableStacktrace bool
	Development       bool
	TimeFormat        string
}

// clone 返回配置的深拷贝，选项修改副本不会影响正在使用的 logger。
func (c *Config) clone() *Config {
	cp := *c
	if c.RotationConfig != nil {
		r := *c.RotationConfig
		cp.RotationConfig = &r
	}
	if c.EncoderConfig != nil {
		e := *c.EncoderConfig
		cp.EncoderConfig = &e
	}
	cp.FilePaths = append([]string(nil), c.FilePaths...)
	cp.InitialFields = make(map[string]interface{}, len(c.InitialFields))
	for k, v := range c.InitialFields {
		cp.InitialFields[k] = v
	}
	return &cp
}

// DefaultConfig 返回默认日志配置：控制台输出，配置文件路径后启用轮转。
func DefaultConfig() *Config {
	return &Config{
		Level:             InfoLevel,
		Encoding:          ConsoleEncoding,
		EnableConsole:     true,
		FilePaths:         nil,
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		InitialFields:     make(map[string]interface{}),
		TimeFormat:        "2006-01-02 15:04:05.000",
		RotationConfig: &RotationConfig{
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 7,
			Compress:   true,
			LocalTime:  true,
		},
		EncoderConfig: &EncoderConfig{
			MessageKey:    "msg",
			LevelKey:      "lvl",
			TimeKey:       "ts",
			CallerKey:     "caller",
			StacktraceKey: "stack",
		},
	}
}

// buildWriters 根据配置构建 io.Writer。
func buildWriters(config *Config) ([]io.Writer, error) {
	writers := make([]io.Writer, 0)

	// 控制台日志写到 stderr，stdout 留给命令的输出
	if config.EnableConsole || len(config.FilePaths) == 0 {
		writers = append(writers, os.Stderr)
	}

	// 如果启用了文件日志但没有配置轮转，则提供一个默认的轮转配置
	rotationConfig := config.RotationConfig
	if len(config.FilePaths) > 0 && rotationConfig == nil {
		rotationConfig = &RotationConfig{
			MaxSize:    100, // 100 MB
			MaxAge:     30,  // 30 days
			MaxBackups: 7,
			Compress:   true,
			LocalTime:  true,
		}
	}

	for _, path := range config.FilePaths {
		var writer io.Writer
		if rotationConfig != nil {
			writer = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    rotationConfig.MaxSize,
				MaxAge:     rotationConfig.MaxAge,
				MaxBackups: rotationConfig.MaxBackups,
				LocalTime:  rotationConfig.LocalTime,
				Compress:   rotationConfig.Compress,
			}
		} else {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, err
			}
			writer = file
		}
		writers = append(writers, writer)
	}

	return writers, nil
}
