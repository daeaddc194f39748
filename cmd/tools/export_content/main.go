package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redstring/internal/apiclient"
	"redstring/pkg/database"
)

// Snapshots the chapter tree of a running server into a seed file that
// the server can load on an empty database.
func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "API base URL")
	outPath := flag.String("out", "data/content.json", "output json path")
	trim := flag.Bool("trim", true, "drop trailing empty pages")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := apiclient.New(*server, nil, 0)
	chapters, err := client.Chapters(ctx)
	if err != nil {
		panic(err)
	}

	out := make([]database.SeedChapter, 0, len(chapters))
	pageCount := 0
	for _, ch := range chapters {
		sections, err := client.ChapterSections(ctx, ch.ID)
		if err != nil {
			panic(err)
		}
		seed := database.SeedChapter{
			Title:       ch.Title,
			Description: ch.Description,
			CoverImage:  ch.CoverImage,
			SongURL:     ch.SongURL,
			Order:       ch.Order,
			Sections:    make([]database.SeedSection, 0, len(sections)),
		}
		for _, s := range sections {
			pages, err := client.Pages(ctx, s.ID)
			if err != nil {
				panic(err)
			}
			texts := make([]string, 0, len(pages))
			for _, p := range pages {
				texts = append(texts, p.Content)
			}
			if *trim {
				texts = trimEmpty(texts)
			}
			pageCount += len(texts)
			seed.Sections = append(seed.Sections, database.SeedSection{
				Title:     s.Title,
				Mood:      s.Mood,
				Tags:      s.Tags,
				Thumbnail: s.Thumbnail,
				SongURL:   s.SongURL,
				Order:     s.Order,
				Pages:     texts,
			})
		}
		out = append(out, seed)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		panic(err)
	}
	j, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(*outPath, j, 0o644); err != nil {
		panic(err)
	}

	fmt.Printf("Wrote %d chapters, %d pages -> %s\n", len(out), pageCount, *outPath)
}

// trimEmpty drops blank pages at the end; the seeder recreates a single
// empty page for sections left with none.
func trimEmpty(pages []string) []string {
	for len(pages) > 0 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
