package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the profile directory under the home directory
	DirName = "associative-memory-ai-companion"

	NameFile          = "name"
	InitialMemoryFile = "initial_mem"
	SettingsFile      = "settings.yaml"

	SeedEmotionLabel = "Sense of existence"
)

var ErrMissingProfile = goerr.New("profile file is missing")

// Settings is the optional settings.yaml in the profile directory. Command
// line flags take precedence over it.
type Settings struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	MaxTokens          int    `yaml:"max_tokens"`
	KeepLongTermMemory *bool  `yaml:"keep_long_term_memory"`
	SavePath           string `yaml:"save_path"`
}

// Profile describes the agent persona and the person talking to it
type Profile struct {
	Dir           string
	UserName      string
	AgentName     string
	InitialMemory string
	Settings      Settings
}

// DefaultDir returns ~/associative-memory-ai-companion
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, DirName), nil
}

// Load reads the profile from dir. The name and initial memory files are
// required; settings.yaml is optional.
func Load(dir string) (*Profile, error) {
	agentName, err := readRequired(filepath.Join(dir, NameFile))
	if err != nil {
		return nil, err
	}
	initialMemory, err := readRequired(filepath.Join(dir, InitialMemoryFile))
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(filepath.Join(dir, SettingsFile))
	if err != nil {
		return nil, err
	}

	return &Profile{
		Dir:           dir,
		UserName:      CurrentUserName(),
		AgentName:     agentName,
		InitialMemory: initialMemory,
		Settings:      *settings,
	}, nil
}

// Seed returns the transcript a new conversation starts from
func (p *Profile) Seed() model.Transcript {
	summary := fmt.Sprintf("My name is %s. Your name is %s. %s", p.UserName, p.AgentName, p.InitialMemory)
	return model.Transcript{
		model.NewLongTermMemory(summary, model.Emotion{Label: SeedEmotionLabel, Intensity: 1}),
	}
}

// CurrentUserName returns the login name of the OS user
func CurrentUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func readRequired(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", goerr.Wrap(ErrMissingProfile, "required profile file not found", goerr.V("file", path))
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to read profile file", goerr.V("file", path))
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

func loadSettings(path string) (*Settings, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read settings file", goerr.V("file", path))
	}

	var settings Settings
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return nil, goerr.Wrap(err, "failed to parse settings file", goerr.V("file", path))
	}
	return &settings, nil
}
