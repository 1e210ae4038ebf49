package desensitize

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// Rule 脱敏规则
type Rule interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Process(s string) string
}

// PatternRule 对整条日志做正则替换
type PatternRule struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
	enabled     atomic.Bool
}

// NewPatternRule 创建正则替换规则，replacement 支持 $1 形式的分组引用
func NewPatternRule(name, pattern, replacement string) (*PatternRule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	r := &PatternRule{name: name, pattern: re, replacement: replacement}
	r.enabled.Store(true)
	return r, nil
}

func MustNewPatternRule(name, pattern, replacement string) *PatternRule {
	r, err := NewPatternRule(name, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *PatternRule) Name() string            { return r.name }
func (r *PatternRule) Enabled() bool           { return r.enabled.Load() }
func (r *PatternRule) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

func (r *PatternRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// NewFieldRule 屏蔽 JSON 字段 "field":"..." 的值，同时覆盖 zerolog 输出与原始请求体
func NewFieldRule(name, field, mask string) (*PatternRule, error) {
	pattern := fmt.Sprintf(`("%s"\s*:\s*")[^"]*(")`, regexp.QuoteMeta(field))
	return NewPatternRule(name, pattern, "${1}"+mask+"${2}")
}

func MustNewFieldRule(name, field, mask string) *PatternRule {
	r, err := NewFieldRule(name, field, mask)
	if err != nil {
		panic(err)
	}
	return r
}
