package post

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed/posts.yaml
var samplePostsYAML []byte

type seedAuthor struct {
	AuthorInput
}

// UnmarshalYAML accepts a bare name or a mapping, like the JSON form.
func (a *seedAuthor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
		return nil
	}
	var obj struct {
		Name   string  `yaml:"name"`
		Handle string  `yaml:"handle"`
		Avatar *string `yaml:"avatar"`
		Bio    *string `yaml:"bio"`
	}
	if err := node.Decode(&obj); err != nil {
		return err
	}
	a.AuthorInput = AuthorInput(obj)
	return nil
}

type seedPost struct {
	Title     string     `yaml:"title"`
	Subtitle  string     `yaml:"subtitle"`
	Author    seedAuthor `yaml:"author"`
	Tags      []string   `yaml:"tags"`
	Cover     string     `yaml:"cover"`
	Status    string     `yaml:"status"`
	Published *time.Time `yaml:"published"`
	Content   string     `yaml:"content"`
	Stats     struct {
		Views     int `yaml:"views"`
		Claps     int `yaml:"claps"`
		Bookmarks int `yaml:"bookmarks"`
	} `yaml:"stats"`
}

// SamplePosts decodes the embedded sample stories.
func SamplePosts() ([]Input, error) {
	var raw []seedPost
	if err := yaml.Unmarshal(samplePostsYAML, &raw); err != nil {
		return nil, fmt.Errorf("decode sample posts: %w", err)
	}
	out := make([]Input, 0, len(raw))
	for _, sp := range raw {
		author := sp.Author.AuthorInput
		in := Input{
			Title:       sp.Title,
			Subtitle:    sp.Subtitle,
			Content:     sp.Content,
			Tags:        sp.Tags,
			Author:      &author,
			Status:      sp.Status,
			PublishedAt: sp.Published,
			Stats: Stats{
				Views:     sp.Stats.Views,
				Claps:     sp.Stats.Claps,
				Bookmarks: sp.Stats.Bookmarks,
			},
		}
		if sp.Cover != "" {
			cover := sp.Cover
			in.CoverImage = &cover
		}
		out = append(out, in)
	}
	return out, nil
}
