package config

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Encode.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// view is the printable form of Config, keyed like the configuration files.
type view struct {
	MarkdownDir       string   `yaml:"markdown_dir" toml:"markdown_dir" json:"markdown_dir"`
	StateDir          string   `yaml:"state_dir" toml:"state_dir" json:"state_dir"`
	Gateway           string   `yaml:"gateway" toml:"gateway" json:"gateway"`
	ConfluenceURL     string   `yaml:"confluence_url,omitempty" toml:"confluence_url,omitempty" json:"confluence_url,omitempty"`
	ConfluenceToken   string   `yaml:"confluence_token,omitempty" toml:"confluence_token,omitempty" json:"confluence_token,omitempty"`
	CLICommand        []string `yaml:"cli_command,omitempty" toml:"cli_command,omitempty" json:"cli_command,omitempty"`
	CLIConnection     string   `yaml:"cli_connection,omitempty" toml:"cli_connection,omitempty" json:"cli_connection,omitempty"`
	ConfluenceSpace   string   `yaml:"confluence_space" toml:"confluence_space" json:"confluence_space"`
	ParentPageID      string   `yaml:"parent_page_id" toml:"parent_page_id" json:"parent_page_id"`
	PageTemplate      string   `yaml:"page_template" toml:"page_template" json:"page_template"`
	RootPageTitle     string   `yaml:"root_page_title" toml:"root_page_title" json:"root_page_title"`
	RootDocument      string   `yaml:"root_document" toml:"root_document" json:"root_document"`
	MarkdownExtension string   `yaml:"markdown_extension" toml:"markdown_extension" json:"markdown_extension"`
	Threads           int      `yaml:"confluence_threads" toml:"confluence_threads" json:"confluence_threads"`
	PageSize          int      `yaml:"page_size" toml:"page_size" json:"page_size"`
	RequestTimeout    string   `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout"`
	LogFile           string   `yaml:"log_file,omitempty" toml:"log_file,omitempty" json:"log_file,omitempty"`
	LogMaxSizeMB      int      `yaml:"log_max_size_mb" toml:"log_max_size_mb" json:"log_max_size_mb"`
}

func (c *Config) view() view {
	return view{
		MarkdownDir:       c.MarkdownDir,
		StateDir:          c.StateDir,
		Gateway:           c.Gateway,
		ConfluenceURL:     c.ConfluenceURL,
		ConfluenceToken:   c.ConfluenceToken,
		CLICommand:        c.CLICommand,
		CLIConnection:     c.CLIConnection,
		ConfluenceSpace:   c.ConfluenceSpace,
		ParentPageID:      c.ParentPageID,
		PageTemplate:      c.PageTemplate,
		RootPageTitle:     c.RootPageTitle,
		RootDocument:      c.RootDocument,
		MarkdownExtension: c.MarkdownExtension,
		Threads:           c.Threads,
		PageSize:          c.PageSize,
		RequestTimeout:    c.RequestTimeout.String(),
		LogFile:           c.LogFile,
		LogMaxSizeMB:      c.LogMaxSizeMB,
	}
}

// Encode writes c to w in the given format.
func (c *Config) Encode(w io.Writer, format string) error {
	v := c.view()

	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(v); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want yaml, toml or json)", format)
	}
}
