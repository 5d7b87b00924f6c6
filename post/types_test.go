package post

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputDecodesLooseShapes(t *testing.T) {
	var in Input
	err := json.Unmarshal([]byte(`{"title":"T","content":"C","author":"Ada","tags":"go, web ,"}`), &in)
	require.NoError(t, err)
	assert.Equal(t, "Ada", in.Author.Name)
	assert.Equal(t, []string{"go", "web"}, NormalizeTags(in.Tags))

	err = json.Unmarshal([]byte(`{"author":{"name":"Ada","handle":"ada-l"},"tags":["go",3,null,"web"]}`), &in)
	require.NoError(t, err)
	assert.Equal(t, "ada-l", in.Author.Handle)
	assert.Equal(t, TagList{"go", "web"}, in.Tags)
}

func TestInputValidate(t *testing.T) {
	var verr *ValidationError

	err := Input{Content: "body"}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	err = Input{Title: "t", Content: "  "}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)

	assert.NoError(t, Input{Title: "t", Content: "c"}.Validate())
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusPublished, ParseStatus(" PUBLISHED "))
	assert.Equal(t, StatusScheduled, ParseStatus("Scheduled"))
	assert.Equal(t, StatusDraft, ParseStatus("archived"))
	assert.Equal(t, StatusDraft, ParseStatus(""))
}

func TestCloneIsDeep(t *testing.T) {
	cover := "a.png"
	p := &Post{Tags: []string{"go"}, CoverImage: &cover}
	c := p.Clone()
	c.Tags[0] = "rust"
	*c.CoverImage = "b.png"

	assert.Equal(t, "go", p.Tags[0])
	assert.Equal(t, "a.png", *p.CoverImage)
}
