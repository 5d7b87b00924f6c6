package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storyline/post"
)

func TestGetMissingFileUsesDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.toml"))

	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestGetFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
title = "My Blog"

[theme]
accent = "#ff0000"

[[social]]
label = "Mastodon"
url = "https://mastodon.social/@me"
`), 0o644))

	got, err := NewStore(path).Get()
	require.NoError(t, err)
	assert.Equal(t, "My Blog", got.Title)
	assert.Equal(t, Defaults().Tagline, got.Tagline)
	assert.Equal(t, "#ff0000", got.Theme.Accent)
	assert.Equal(t, Defaults().Theme.Primary, got.Theme.Primary)
	assert.Equal(t, []SocialLink{{Label: "Mastodon", URL: "https://mastodon.social/@me"}}, got.Social)
}

func TestGetRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`title = `), 0o644))

	_, err := NewStore(path).Get()
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.toml")
	s := NewStore(path)

	saved, err := s.Save(Settings{
		Title:  "Saved",
		Banner: Banner{Enabled: true, Message: "Hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, Defaults().Theme, saved.Theme)

	got, err := NewStore(path).Get()
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestSaveValidates(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.toml"))
	var verr *post.ValidationError

	_, err := s.Save(Settings{Theme: Theme{Primary: "green"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "theme.primary", verr.Field)

	_, err = s.Save(Settings{Banner: Banner{Enabled: true}})
	require.ErrorAs(t, err, &verr)

	_, err = s.Save(Settings{Social: []SocialLink{{Label: "x"}}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "social[0]", verr.Field)
}
