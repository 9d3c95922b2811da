package glog

import "errors"

var (
	// ErrInvalidKeyValuePairs 表示为结构化日志提供了奇数个参数，
	// 而期望的是偶数个（键值对）。
	ErrInvalidKeyValuePairs = errors.New("glog: odd number of key-value arguments")

	// ErrKeyNotString 表示为结构化日志提供的键不是字符串类型。
	ErrKeyNotString = errors.New("glog: log field key must be a string")

	// ErrUnknownLevel 表示无法识别的日志级别名称。
	ErrUnknownLevel = errors.New("glog: unknown level")
)
