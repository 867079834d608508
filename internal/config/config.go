// Package config loads wikisync settings from one or more files plus
// WIKISYNC_* environment variables.
//
// Files are merged in the order given, later files overriding earlier ones,
// so a shared base file can be combined with a per-project file holding the
// parent page id and credentials. JSON files may contain whole-line "//"
// comments. YAML and TOML files are accepted as well.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// WIKISYNC_CONFLUENCE_TOKEN.
const EnvPrefix = "WIKISYNC"

// Keys.
const (
	KeyMarkdownDir       = "markdown_dir"
	KeyStateDir          = "state_dir"
	KeyGateway           = "gateway"
	KeyConfluenceURL     = "confluence_url"
	KeyConfluenceToken   = "confluence_token"
	KeyCLICommand        = "cli_command"
	KeyCLIConnection     = "cli_connection"
	KeyConfluenceSpace   = "confluence_space"
	KeyParentPageID      = "parent_page_id"
	KeyPageTemplate      = "page_template"
	KeyRootPageTitle     = "root_page_title"
	KeyRootDocument      = "root_document"
	KeyMarkdownExtension = "markdown_extension"
	KeyThreads           = "confluence_threads"
	KeyPageSize          = "page_size"
	KeyRequestTimeout    = "request_timeout"
	KeyLogFile           = "log_file"
	KeyLogMaxSizeMB      = "log_max_size_mb"

	// AliasHeaderTemplate is the older name of KeyPageTemplate.
	AliasHeaderTemplate = "markdown_header_template"
)

// Defaults.
const (
	DefaultGateway           = "rest"
	DefaultRootDocument      = "README.md"
	DefaultMarkdownExtension = ".md"
	DefaultThreads           = 4
	DefaultPageSize          = 100
	DefaultRequestTimeout    = 60 * time.Second
	DefaultLogMaxSizeMB      = 10
)

var allKeys = []string{
	KeyMarkdownDir, KeyStateDir, KeyGateway, KeyConfluenceURL, KeyConfluenceToken,
	KeyCLICommand, KeyCLIConnection, KeyConfluenceSpace, KeyParentPageID,
	KeyPageTemplate, KeyRootPageTitle, KeyRootDocument, KeyMarkdownExtension,
	KeyThreads, KeyPageSize, KeyRequestTimeout, KeyLogFile, KeyLogMaxSizeMB,
}

// Config is the effective configuration.
type Config struct {
	MarkdownDir       string
	StateDir          string
	Gateway           string
	ConfluenceURL     string
	ConfluenceToken   string
	CLICommand        []string
	CLIConnection     string
	ConfluenceSpace   string
	ParentPageID      string
	PageTemplate      string
	RootPageTitle     string
	RootDocument      string
	MarkdownExtension string
	Threads           int
	PageSize          int
	RequestTimeout    time.Duration
	LogFile           string
	LogMaxSizeMB      int

	// Files are the configuration files that were merged, in order.
	Files []string
}

// Load reads and merges the files at paths, applies environment overrides
// and defaults, and validates the result.
func Load(fs afero.Fs, paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, &Error{Err: ErrNoConfig}
	}

	v := viper.New()
	setDefaults(v)

	for _, path := range paths {
		if err := merge(fs, v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range allKeys {
		_ = v.BindEnv(key)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.Files = append([]string(nil), paths...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyGateway, DefaultGateway)
	v.SetDefault(KeyRootDocument, DefaultRootDocument)
	v.SetDefault(KeyMarkdownExtension, DefaultMarkdownExtension)
	v.SetDefault(KeyThreads, DefaultThreads)
	v.SetDefault(KeyPageSize, DefaultPageSize)
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout.String())
	v.SetDefault(KeyLogMaxSizeMB, DefaultLogMaxSizeMB)
}

func merge(fs afero.Fs, v *viper.Viper, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return &Error{File: path, Err: err}
	}

	format, err := formatOf(path)
	if err != nil {
		return &Error{File: path, Err: err}
	}
	if format == "json" {
		data = StripComments(data)
	}

	fv := viper.New()
	fv.SetConfigType(format)
	if err := fv.ReadConfig(bytes.NewReader(data)); err != nil {
		return &Error{File: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	// The old template key is renamed per file so that merge order decides
	// between it and the new one.
	settings := fv.AllSettings()
	if val, ok := settings[AliasHeaderTemplate]; ok {
		if _, set := settings[KeyPageTemplate]; !set {
			settings[KeyPageTemplate] = val
		}
		delete(settings, AliasHeaderTemplate)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return &Error{File: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", "":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrMalformed, filepath.Ext(path))
	}
}

// StripComments removes lines whose first non-blank characters are "//".
// Removed lines are left empty so parser line numbers still match the file.
func StripComments(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("//")) {
			lines[i] = nil
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		MarkdownDir:       v.GetString(KeyMarkdownDir),
		StateDir:          v.GetString(KeyStateDir),
		Gateway:           strings.ToLower(v.GetString(KeyGateway)),
		ConfluenceURL:     v.GetString(KeyConfluenceURL),
		ConfluenceToken:   v.GetString(KeyConfluenceToken),
		CLICommand:        v.GetStringSlice(KeyCLICommand),
		CLIConnection:     v.GetString(KeyCLIConnection),
		ConfluenceSpace:   v.GetString(KeyConfluenceSpace),
		ParentPageID:      strings.TrimSpace(v.GetString(KeyParentPageID)),
		PageTemplate:      v.GetString(KeyPageTemplate),
		RootPageTitle:     v.GetString(KeyRootPageTitle),
		RootDocument:      v.GetString(KeyRootDocument),
		MarkdownExtension: v.GetString(KeyMarkdownExtension),
		LogFile:           v.GetString(KeyLogFile),
	}

	if len(cfg.CLICommand) == 0 {
		cfg.CLICommand = nil
	}

	var err error
	if cfg.Threads, err = intValue(v, KeyThreads); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = intValue(v, KeyPageSize); err != nil {
		return nil, err
	}
	if cfg.LogMaxSizeMB, err = intValue(v, KeyLogMaxSizeMB); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = durationValue(v, KeyRequestTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	switch raw := v.Get(key).(type) {
	case int:
		return raw, nil
	case int64:
		return int(raw), nil
	case float64:
		if raw != float64(int(raw)) {
			return 0, invalid(key, "%v is not a whole number", raw)
		}
		return int(raw), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, invalid(key, "%q is not a number", raw)
		}
		return n, nil
	default:
		return 0, invalid(key, "unexpected value %v", raw)
	}
}

// durationValue accepts Go duration strings ("90s", "2m") or a plain number
// of seconds.
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case string:
		if secs, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return 0, invalid(key, "%q is not a duration", raw)
		}
		return d, nil
	case int:
		return time.Duration(raw) * time.Second, nil
	case int64:
		return time.Duration(raw) * time.Second, nil
	case float64:
		return time.Duration(raw * float64(time.Second)), nil
	default:
		return 0, invalid(key, "unexpected value %v", raw)
	}
}

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyMarkdownDir, c.MarkdownDir},
		{KeyStateDir, c.StateDir},
		{KeyConfluenceSpace, c.ConfluenceSpace},
		{KeyParentPageID, c.ParentPageID},
		{KeyPageTemplate, c.PageTemplate},
		{KeyRootPageTitle, c.RootPageTitle},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return missing(r.key)
		}
	}

	switch c.Gateway {
	case "rest":
		if c.ConfluenceURL == "" {
			return missing(KeyConfluenceURL)
		}
		if c.ConfluenceToken == "" {
			return missing(KeyConfluenceToken)
		}
	case "cli":
		if len(c.CLICommand) == 0 {
			return missing(KeyCLICommand)
		}
	default:
		return invalid(KeyGateway, "unknown gateway %q (want rest or cli)", c.Gateway)
	}

	if c.Threads < 1 {
		return invalid(KeyThreads, "must be at least 1, got %d", c.Threads)
	}
	if c.PageSize < 1 {
		return invalid(KeyPageSize, "must be at least 1, got %d", c.PageSize)
	}
	if c.RequestTimeout <= 0 {
		return invalid(KeyRequestTimeout, "must be positive, got %s", c.RequestTimeout)
	}
	if !strings.HasPrefix(c.MarkdownExtension, ".") {
		return invalid(KeyMarkdownExtension, "must start with a dot, got %q", c.MarkdownExtension)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.CLICommand = append([]string(nil), c.CLICommand...)
	cp.Files = append([]string(nil), c.Files...)
	if cp.ConfluenceToken != "" {
		cp.ConfluenceToken = redactedToken
	}
	return &cp
}

const redactedToken = "********"

// IsMissing reports whether err is a missing-key configuration error.
func IsMissing(err error) bool {
	return errors.Is(err, ErrMissingKey)
}
