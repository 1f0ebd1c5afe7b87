package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the set of known server targets gonats-sub can subscribe
// against, resolved from (in priority order) a -s/--server flag, a YAML
// config file, or an imported NATS CLI context.
type Config struct {
	Contexts       []Context `yaml:"contexts"`
	DefaultContext string    `yaml:"default_context"`
	currentContext *Context
}

// Context is one named NATS server target. Token is sent as-is in the
// CONNECT frame's auth_token field; Creds names a `nats context save`
// style .creds file, whose embedded user JWT FromContext decodes into the
// jwt field instead. A Context with both set sends both — the server picks
// whichever auth method it's configured for and ignores the other.
type Context struct {
	Name   string `yaml:"name"`
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
	Creds  string `yaml:"creds,omitempty"`
}

// natsContext is the on-disk shape of a NATS CLI context file, as written
// to ~/.config/nats/context/<name>.json by `nats context save`.
type natsContext struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	Creds    string `json:"creds"`
	User     string `json:"user"`
	Password string `json:"password"`
	NKey     string `json:"nkey"`
}

// expandPath resolves environment variables, a leading "~", and paths
// relative to configDir into an absolute path.
func expandPath(path string, configDir string) (string, error) {
	if path == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(path)

	if strings.HasPrefix(expanded, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, expanded[2:])
	} else if expanded == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		expanded = homeDir
	}

	if !filepath.IsAbs(expanded) && configDir != "" {
		expanded = filepath.Join(configDir, expanded)
	}

	return filepath.Clean(expanded), nil
}

func getNATSContextDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "nats", "context"), nil
}

// getCurrentNATSContext reads the name of the NATS CLI's active context.
func getCurrentNATSContext() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	contextFile := filepath.Join(homeDir, ".config", "nats", "context.txt")
	data, err := os.ReadFile(contextFile)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// readNATSContext loads one NATS CLI context file and adapts it to Context.
func readNATSContext(name string) (*Context, error) {
	contextDir, err := getNATSContextDir()
	if err != nil {
		return nil, err
	}

	contextPath := filepath.Join(contextDir, name+".json")
	data, err := os.ReadFile(contextPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read NATS context '%s': %w", name, err)
	}

	var natsCtx natsContext
	if err := json.Unmarshal(data, &natsCtx); err != nil {
		return nil, fmt.Errorf("failed to parse NATS context '%s': %w", name, err)
	}

	creds := natsCtx.Creds
	if creds != "" {
		creds, err = expandPath(creds, contextDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand creds path: %w", err)
		}
	}

	token := natsCtx.Token
	if token != "" && strings.Contains(token, "$") {
		token = os.ExpandEnv(token)
	}

	return &Context{
		Name:   name,
		Server: natsCtx.URL,
		Token:  token,
		Creds:  creds,
	}, nil
}

// listNATSContexts enumerates every context the NATS CLI knows about.
func listNATSContexts() ([]Context, error) {
	contextDir, err := getNATSContextDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(contextDir)
	if err != nil {
		return nil, err
	}

	var contexts []Context
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".bak") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		ctx, err := readNATSContext(name)
		if err != nil {
			continue
		}
		contexts = append(contexts, *ctx)
	}

	return contexts, nil
}

// loadFromNATSContexts builds a Config by importing the NATS CLI's own
// contexts, so a machine already set up for `nats sub` doesn't need a
// second copy of the same server addresses.
func loadFromNATSContexts() (*Config, error) {
	contexts, err := listNATSContexts()
	if err != nil || len(contexts) == 0 {
		return nil, fmt.Errorf("no NATS contexts found")
	}

	currentCtx, err := getCurrentNATSContext()
	if err != nil {
		currentCtx = contexts[0].Name
	}

	cfg := &Config{
		Contexts:       contexts,
		DefaultContext: currentCtx,
	}
	cfg.resolveCurrentContext()
	return cfg, nil
}

// DefaultConfig points at a NATS server on localhost, for a first run with
// no config file and no NATS CLI contexts to import.
func DefaultConfig() *Config {
	cfg := &Config{
		Contexts: []Context{
			{
				Name:   "local",
				Server: "nats://localhost:4222",
			},
		},
		DefaultContext: "local",
	}
	cfg.resolveCurrentContext()
	return cfg
}

// Load resolves the server target gonats-sub should connect to, trying in
// order: an explicit serverURL (from -s), the YAML file at configPath (or
// its default location), an imported NATS CLI context, and finally
// DefaultConfig. A freshly created default is persisted to configPath so
// subsequent runs pick it up without re-resolving.
func Load(configPath, serverURL string) (*Config, error) {
	if serverURL != "" {
		cfg := &Config{
			Contexts:       []Context{{Name: "cli", Server: serverURL}},
			DefaultContext: "cli",
		}
		cfg.currentContext = &cfg.Contexts[0]
		return cfg, nil
	}

	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "gonats-sub", "config.yaml")
	}

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err = loadFromNATSContexts()
		if err == nil {
			return cfg, nil
		}

		cfg = DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		configDir := filepath.Dir(configPath)
		for i := range cfg.Contexts {
			if cfg.Contexts[i].Creds != "" {
				expanded, err := expandPath(cfg.Contexts[i].Creds, configDir)
				if err != nil {
					return nil, fmt.Errorf("failed to expand creds path for context '%s': %w", cfg.Contexts[i].Name, err)
				}
				cfg.Contexts[i].Creds = expanded
			}
			if cfg.Contexts[i].Token != "" && strings.Contains(cfg.Contexts[i].Token, "$") {
				cfg.Contexts[i].Token = os.ExpandEnv(cfg.Contexts[i].Token)
			}
		}
	}

	cfg.resolveCurrentContext()
	return cfg, nil
}

// resolveCurrentContext points currentContext at the Context named
// DefaultContext, falling back to the first Context when DefaultContext
// doesn't match any of them (a hand-edited config file with a typo'd
// default_context, for instance). loadFromNATSContexts and Load both reach
// a set of Contexts plus a DefaultContext through different paths, so this
// is the one place that turns that pair into a resolved *Context.
func (c *Config) resolveCurrentContext() {
	for i := range c.Contexts {
		if c.Contexts[i].Name == c.DefaultContext {
			c.currentContext = &c.Contexts[i]
			return
		}
	}
	if len(c.Contexts) > 0 {
		c.currentContext = &c.Contexts[0]
	}
}

// Save writes the config to configPath as YAML, creating parent
// directories as needed.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CurrentContext returns the resolved connection target, falling back to
// a bare localhost context when no Context was resolved (a config with no
// contexts, or a Config built without Load or DefaultConfig).
func (c *Config) CurrentContext() *Context {
	if c.currentContext != nil {
		return c.currentContext
	}
	return &Context{
		Name:   "default",
		Server: "nats://localhost:4222",
	}
}

// CurrentContextName returns the resolved context's name.
func (c *Config) CurrentContextName() string {
	if c.currentContext != nil {
		return c.currentContext.Name
	}
	return "unknown"
}
