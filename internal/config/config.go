package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件（--config）不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultStore 是快照存储的默认位置（相对 cwd 的目录，使用文件后端）。
	DefaultStore = ".quizcarry"
	// DefaultKey 是快照在存储中的固定 key（沿用历史快照的名字，旧快照可直接回放）。
	DefaultKey = "CanvasTransfer"
	// EnvStore 允许在 .env / 环境变量中指定存储地址（例如 redis://…，避免把口令写进配置文件）。
	EnvStore = "QUIZCARRY_STORE"
)

// 配置文件按顺序发现（cwd 下）；都不存在时使用默认值。
var configNames = []string{"quizcarry.json", "quizcarry.yaml", "quizcarry.yml"}

// CLIArgs 是 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
type CLIArgs struct {
	// Document 是保存下来的 HTML 页面；与 Browser 二选一（Document 优先）。
	Document string
	Browser  string
	Page     string
	Out      string

	Store    string
	StoreSet bool

	// ConfigPath 非空时必须存在，且不再做自动发现。
	ConfigPath string
}

// FileConfig 对应 quizcarry.json / quizcarry.yaml 的解析结构。
type FileConfig struct {
	Store   string  `json:"store" yaml:"store"`
	Key     string  `json:"key" yaml:"key"`
	Browser string  `json:"browser" yaml:"browser"`
	Page    string  `json:"page" yaml:"page"`
	Markers Markers `json:"markers" yaml:"markers"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Document 为绝对路径；为空时表示使用 Browser。
	Document string
	Browser  string
	Page     string
	// Out 是回放后改写的 HTML 输出路径（只对 Document 有意义）。
	Out string

	// Store 是规范化后的存储地址：文件/sqlite 路径已转为绝对路径。
	Store string
	Key   string

	Markers Markers

	// ConfigPath 是实际读取的配置文件（未读取任何文件时为空）。
	ConfigPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件与 .env，然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - 来源：CLI document > CLI --browser > config browser
// - store：CLI --store > 环境变量 QUIZCARRY_STORE（含 <cwd>/.env）> config store > 默认 .quizcarry
// - key / markers：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	// .env 可选，只读不写入进程环境；已存在的环境变量优先。
	envPath := filepath.Join(cwdAbs, ".env")
	dotenv, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: envPath, Err: err}
	}
	envStore := strings.TrimSpace(os.Getenv(EnvStore))
	if envStore == "" {
		envStore = strings.TrimSpace(dotenv[EnvStore])
	}

	fc, cfgPath, err := discover(cwdAbs, cli.ConfigPath)
	if err != nil {
		return EffectiveConfig{}, err
	}

	return merge(cwdAbs, cli, fc, cfgPath, envStore)
}

func discover(cwdAbs, explicit string) (FileConfig, string, error) {
	if strings.TrimSpace(explicit) != "" {
		p := absCleanFrom(cwdAbs, explicit)
		fc, exists, err := readFileConfig(p)
		if err != nil {
			return FileConfig{}, p, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if !exists {
			return FileConfig{}, p, &Error{Code: ErrCodeNotFound, Path: p, Err: os.ErrNotExist}
		}
		return fc, p, nil
	}

	for _, name := range configNames {
		p := filepath.Join(cwdAbs, name)
		fc, exists, err := readFileConfig(p)
		if err != nil {
			return FileConfig{}, p, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			return fc, p, nil
		}
	}
	return FileConfig{}, "", nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath, envStore string) (EffectiveConfig, error) {
	eff := EffectiveConfig{ConfigPath: cfgPath}

	switch {
	case strings.TrimSpace(cli.Document) != "":
		eff.Document = absCleanFrom(cwdAbs, cli.Document)
	case strings.TrimSpace(cli.Browser) != "":
		eff.Browser = strings.TrimSpace(cli.Browser)
	default:
		eff.Browser = strings.TrimSpace(fc.Browser)
	}

	if eff.Browser != "" {
		if err := validateControlURL(eff.Browser); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		eff.Page = strings.TrimSpace(cli.Page)
		if eff.Page == "" {
			eff.Page = strings.TrimSpace(fc.Page)
		}
	}

	if eff.Document != "" {
		if strings.TrimSpace(cli.Out) != "" {
			eff.Out = absCleanFrom(cwdAbs, cli.Out)
		} else {
			eff.Out = defaultOut(eff.Document)
		}
	}

	store := DefaultStore
	if cli.StoreSet {
		store = cli.Store
	} else if envStore != "" {
		store = envStore
	} else if strings.TrimSpace(fc.Store) != "" {
		store = fc.Store
	}
	s, err := normalizeStore(cwdAbs, store)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.Store = s

	eff.Key = DefaultKey
	if strings.TrimSpace(fc.Key) != "" {
		eff.Key = strings.TrimSpace(fc.Key)
	}
	if !keyRE.MatchString(eff.Key) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("key 只能包含字母、数字、'_'、'-'、'.'，实际是 %q", eff.Key)}
	}

	eff.Markers = DefaultMarkers().Overlay(fc.Markers)
	if err := eff.Markers.Validate(); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

// RequireSource 用于 run：必须有且只有一个文档来源。
func (e EffectiveConfig) RequireSource() error {
	if e.Document == "" && e.Browser == "" {
		return &Error{Code: ErrCodeInvalid, Path: e.ConfigPath, Err: errors.New("需要一个 HTML 文档路径，或通过 --browser 指定浏览器 DevTools 地址")}
	}
	return nil
}

// DisplayStore 返回可以输出到终端与报告的 store 地址（口令已隐去）。
func (e EffectiveConfig) DisplayStore() string { return RedactStore(e.Store) }

// RedactStore 隐去 URL 形式 store 地址中的用户名与口令；普通路径原样返回。
func RedactStore(s string) string {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return s
	}
	return scheme + "://***@" + rest[at+1:]
}

// Source 返回来源的可读描述（用于 report 与进度输出）。
func (e EffectiveConfig) Source() string {
	if e.Document != "" {
		return e.Document
	}
	if e.Page != "" {
		return e.Browser + " (page~" + e.Page + ")"
	}
	return e.Browser
}

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func validateControlURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return fmt.Errorf("browser 地址无效：%q", s)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
		return nil
	default:
		return fmt.Errorf("browser 地址必须是 ws/wss/http/https：%q", s)
	}
}

// normalizeStore 把存储地址规范化：
// - redis:// / rediss:// 原样保留（只校验可解析）
// - sqlite://<path> 的 path 转为绝对路径
// - file://<path> 或裸路径 转为绝对路径（目录）
func normalizeStore(cwdAbs, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("store 不能为空")
	}
	switch {
	case strings.HasPrefix(s, "redis://"), strings.HasPrefix(s, "rediss://"):
		if _, err := url.Parse(s); err != nil {
			return "", fmt.Errorf("store 地址无效：%w", err)
		}
		return s, nil
	case strings.HasPrefix(s, "sqlite://"):
		p := strings.TrimPrefix(s, "sqlite://")
		if strings.TrimSpace(p) == "" {
			return "", errors.New("sqlite store 缺少文件路径")
		}
		return "sqlite://" + absCleanFrom(cwdAbs, p), nil
	case strings.HasPrefix(s, "file://"):
		return absCleanFrom(cwdAbs, strings.TrimPrefix(s, "file://")), nil
	case strings.Contains(s, "://"):
		return "", fmt.Errorf("不支持的 store 协议：%q（可用 file/sqlite/redis）", s)
	default:
		return absCleanFrom(cwdAbs, s), nil
	}
}

func defaultOut(doc string) string {
	ext := filepath.Ext(doc)
	return strings.TrimSuffix(doc, ext) + ".replayed" + ext
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（.yaml/.yml 走 YAML，其余按 JSON）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
