// Package config resolves the server and client CLI surfaces named in
// this module's spec: flags as the final word, a YAML file in between,
// and env vars (via internal/utils.GetEnv) as the base layer, the way
// the teacher implementation layers env vars under its cmd/*/main.go
// constructors.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/milosgajdos/go-tftp/internal/utils"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the fully resolved configuration for cmd/server.
type ServerConfig struct {
	Port           uint   `yaml:"port"`
	RootDir        string `yaml:"rootDir"`
	ReadTimeout    uint   `yaml:"readTimeout"`
	LogLevel       string `yaml:"logLevel"`
	AuditDBPath    string `yaml:"auditDBPath"`
	AuditEnabled   bool   `yaml:"auditEnabled"`
}

// ClientConfig is the fully resolved configuration for cmd/client. An
// empty Dest means "no one-shot transfer requested": main.go drops into
// the interactive CLI instead. Otherwise, per the CLI surface's
// "-f|--file REMOTEPATH -t|--dest DESTPATH" grammar: with File set, it is
// a download (File is the remote path, Dest the local one); with File
// empty, it is an upload of standard input to Dest (the remote path).
type ClientConfig struct {
	Hostname string `yaml:"hostname"`
	Port     uint   `yaml:"port"`
	File     string `yaml:"file"`
	Dest     string `yaml:"dest"`
	LogLevel string `yaml:"logLevel"`
}

// LoadServer resolves a ServerConfig from env vars, an optional YAML
// file, and CLI flags, in that increasing order of precedence.
func LoadServer(args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:        utils.GetEnv[uint]("TFTP_PORT", "69", false),
		RootDir:     utils.GetEnv[string]("TFTP_ROOT_DIR", "", false),
		ReadTimeout: utils.GetEnv[uint]("TFTP_READ_TIMEOUT", "5", false),
		LogLevel:    utils.GetEnv[string]("TFTP_LOG_LEVEL", "info", false),
		AuditDBPath: utils.GetEnv[string]("TFTP_AUDIT_DB", "", false),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	port := fs.Uint("p", cfg.Port, "port to listen on")
	fs.UintVar(port, "port", cfg.Port, "port to listen on")
	readTimeout := fs.Uint("read-timeout", cfg.ReadTimeout, "initial per-transfer timeout, in seconds")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	configPath := fs.String("c", "", "path to a YAML config file")
	fs.StringVar(configPath, "config", "", "path to a YAML config file")
	audit := fs.Bool("audit", false, "record transfer outcomes to a sqlite audit log under ROOTDIR")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error while parsing flags: %w", err)
	}

	if *configPath != "" {
		if err := mergeYAMLFile(*configPath, cfg); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p", "port":
			cfg.Port = *port
		case "read-timeout":
			cfg.ReadTimeout = *readTimeout
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	cfg.AuditEnabled = *audit || cfg.AuditDBPath != ""

	if fs.NArg() < 1 {
		return nil, fmt.Errorf("missing required ROOTDIR argument")
	}

	cfg.RootDir = fs.Arg(0)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be in 1..65535, got %d", cfg.Port)
	}

	if err := os.MkdirAll(cfg.RootDir, 0o700); err != nil {
		return nil, fmt.Errorf("error while creating root directory %q: %w", cfg.RootDir, err)
	}

	return cfg, nil
}

// LoadClient resolves a ClientConfig from env vars and CLI flags. With no
// -t/--dest, main.go starts the interactive CLI; otherwise, with -f it
// downloads -f REMOTEPATH to -t DESTPATH, and without -f it uploads
// standard input to -t DESTPATH on the server.
func LoadClient(args []string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		Hostname: utils.GetEnv[string]("TFTP_HOSTNAME", "", false),
		Port:     utils.GetEnv[uint]("TFTP_PORT", "69", false),
		LogLevel: utils.GetEnv[string]("TFTP_LOG_LEVEL", "info", false),
	}

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	hostname := fs.String("h", cfg.Hostname, "remote tftp server hostname; empty discovers the default gateway")
	fs.StringVar(hostname, "hostname", cfg.Hostname, "remote tftp server hostname; empty discovers the default gateway")
	port := fs.Uint("p", cfg.Port, "remote tftp server port")
	fs.UintVar(port, "port", cfg.Port, "remote tftp server port")
	file := fs.String("f", "", "remote path to download; omit to upload standard input instead")
	fs.StringVar(file, "file", "", "remote path to download; omit to upload standard input instead")
	dest := fs.String("t", "", "download destination path, or upload remote path; omit to start the interactive shell")
	fs.StringVar(dest, "dest", "", "download destination path, or upload remote path; omit to start the interactive shell")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error while parsing flags: %w", err)
	}

	cfg.Hostname = *hostname
	cfg.Port = *port
	cfg.File = *file
	cfg.Dest = *dest

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be in 1..65535, got %d", cfg.Port)
	}

	return cfg, nil
}

func mergeYAMLFile(path string, cfg *ServerConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}

	return nil
}
