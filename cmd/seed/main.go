// Package main provides a tool to seed the database with sample books.
//
// This writes a small set of well-known titles directly into the store and
// the search index, so import dedup and manual matching can be exercised
// against a non-empty library.
//
// Usage:
//
//	DATA_PATH=~/shelfsync go run ./cmd/seed
//	DATA_PATH=~/shelfsync go run ./cmd/seed --count 50  # Pad with generated titles
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/search"
	"github.com/shelfsyncapp/shelfsync-server/internal/store"
)

var count = flag.Int("count", 0, "Pad the library with generated titles up to this count")

func main() {
	flag.Parse()

	basePath := os.Getenv("DATA_PATH")
	if basePath == "" {
		basePath = os.ExpandEnv("$HOME/shelfsync")
	}

	fmt.Printf("Opening data directory at: %s\n", basePath)

	s, err := store.New(filepath.Join(basePath, "db"), nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	index, err := search.NewIndex(search.Options{DataPath: basePath})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	books := sampleBooks(now)
	for i := 1; len(books) < *count; i++ {
		books = append(books, &domain.Book{
			ISBN:    fmt.Sprintf("syn-seed-%04d", i),
			Title:   fmt.Sprintf("Generated Title %d", i),
			Authors: []string{"Seed Author"},
			AddedAt: now,
			Source:  "seed",
		})
	}

	created := 0
	for _, book := range books {
		if _, err := s.GetBook(ctx, book.ISBN); err == nil {
			continue // already present
		}
		if err := s.PutBook(ctx, book); err != nil {
			log.Printf("Failed to write %s: %v", book.ISBN, err)
			continue
		}
		if err := index.IndexBook(ctx, book); err != nil {
			log.Printf("Failed to index %s: %v", book.ISBN, err)
		}
		created++
	}

	total, _ := s.CountBooks(ctx)
	fmt.Printf("Created %d books, library now holds %d\n", created, total)
}

func sampleBooks(now time.Time) []*domain.Book {
	pos := func(p float64) *float64 { return &p }
	pages := func(n int) *int { return &n }

	return []*domain.Book{
		{
			ISBN:           "9780441172719",
			Title:          "Dune",
			Authors:        []string{"Frank Herbert"},
			Series:         "Dune",
			SeriesPosition: pos(1),
			PageCount:      pages(412),
			Categories:     []string{"Science Fiction"},
			AddedAt:        now,
			Source:         "seed",
		},
		{
			ISBN:           "9780441104024",
			Title:          "Children of Dune",
			Authors:        []string{"Frank Herbert"},
			Series:         "Dune",
			SeriesPosition: pos(3),
			Categories:     []string{"Science Fiction"},
			AddedAt:        now,
			Source:         "seed",
		},
		{
			ISBN:       "9780553293357",
			Title:      "Foundation",
			Authors:    []string{"Isaac Asimov"},
			Series:     "Foundation",
			Categories: []string{"Science Fiction"},
			AddedAt:    now,
			Source:     "seed",
		},
		{
			ISBN:      "9780135957059",
			Title:     "The Pragmatic Programmer",
			Authors:   []string{"David Thomas", "Andrew Hunt"},
			PageCount: pages(352),
			AddedAt:   now,
			Source:    "seed",
		},
	}
}
