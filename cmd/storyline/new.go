package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/eringen/storyline"
	"github.com/eringen/storyline/post"
)

const draftBody = "Start writing here."

func runNew(title string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	title = strings.TrimSpace(title)
	if post.ToSlug(title) == title {
		title = toTitle(title)
	}

	store := post.NewStore(cfg.ContentDir, post.WithoutSeed(), post.WithLogger(log))
	p, err := store.Create(post.Input{
		Title:   title,
		Content: draftBody,
		Status:  string(post.StatusDraft),
		Author:  &post.AuthorInput{Name: storyline.EnvOr("STORYLINE_AUTHOR", "")},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created draft %q\n", p.Title)
	fmt.Printf("  %s\n", filepath.Join(cfg.ContentDir, "drafts", p.ID+".post"))
	return nil
}

// toTitle converts a hyphenated slug to a title-case string.
// e.g. "my-first-post" -> "My First Post"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
