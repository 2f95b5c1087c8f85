package profile_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/profile"
)

func writeProfile(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		gt.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)).Required()
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeProfile(t, map[string]string{
		profile.NameFile:          "Mika\n",
		profile.InitialMemoryFile: "You like green tea.  \n\n",
	})

	p, err := profile.Load(dir)
	gt.NoError(t, err).Required()
	gt.Equal(t, p.AgentName, "Mika")
	gt.Equal(t, p.InitialMemory, "You like green tea.")
	gt.Equal(t, p.Dir, dir)
	gt.Equal(t, p.UserName, profile.CurrentUserName())
	gt.Equal(t, p.Settings, profile.Settings{})
}

func TestLoadSettings(t *testing.T) {
	dir := writeProfile(t, map[string]string{
		profile.NameFile:          "Mika",
		profile.InitialMemoryFile: "memo",
		profile.SettingsFile: `provider: claude
model: claude-3-5-haiku-latest
max_tokens: 200
keep_long_term_memory: false
save_path: gs://bucket/save.json
`,
	})

	p, err := profile.Load(dir)
	gt.NoError(t, err).Required()
	gt.Equal(t, p.Settings.Provider, "claude")
	gt.Equal(t, p.Settings.Model, "claude-3-5-haiku-latest")
	gt.Equal(t, p.Settings.MaxTokens, 200)
	gt.Equal(t, p.Settings.SavePath, "gs://bucket/save.json")
	gt.V(t, p.Settings.KeepLongTermMemory).NotNil()
	gt.False(t, *p.Settings.KeepLongTermMemory)
}

func TestLoadMissingFiles(t *testing.T) {
	testCases := map[string]map[string]string{
		"no name":           {profile.InitialMemoryFile: "memo"},
		"no initial memory": {profile.NameFile: "Mika"},
		"empty dir":         {},
	}

	for name, files := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := profile.Load(writeProfile(t, files))
			gt.Error(t, err).Required()
			gt.True(t, errors.Is(err, profile.ErrMissingProfile))
		})
	}
}

func TestLoadInvalidSettings(t *testing.T) {
	dir := writeProfile(t, map[string]string{
		profile.NameFile:          "Mika",
		profile.InitialMemoryFile: "memo",
		profile.SettingsFile:      "invalid: yaml: content:",
	})

	_, err := profile.Load(dir)
	gt.Error(t, err).Required()
}

func TestSeed(t *testing.T) {
	p := &profile.Profile{
		UserName:      "alice",
		AgentName:     "Mika",
		InitialMemory: "You like green tea.",
	}

	seed := p.Seed()
	gt.A(t, seed).Length(1).Required()

	ltm, ok := seed[0].(*model.LongTermMemory)
	gt.True(t, ok)
	gt.Equal(t, ltm.Summary, "My name is alice. Your name is Mika. You like green tea.")
	gt.Equal(t, ltm.Emotion, model.Emotion{Label: "Sense of existence", Intensity: 1})
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	dir, err := profile.DefaultDir()
	gt.NoError(t, err).Required()
	gt.Equal(t, dir, filepath.Join("/home/alice", profile.DirName))
}
