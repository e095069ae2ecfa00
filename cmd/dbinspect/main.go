// Command dbinspect dumps a summary of the book database for debugging.
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/shelfsync/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	bookCount := 0
	syntheticCount := 0
	bySource := map[string]int{}
	shown := 0

	err = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte("book:")
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte("book:")); it.ValidForPrefix([]byte("book:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(val []byte) error {
				var book domain.Book
				if err := json.Unmarshal(val, &book); err != nil {
					return err
				}

				bookCount++
				if book.HasSyntheticISBN() {
					syntheticCount++
				}
				source := book.Source
				if source == "" {
					source = "unknown"
				}
				bySource[source]++

				// Show the first few records in full
				if shown < 5 {
					shown++
					fmt.Printf("Book: %s\n", book.Title)
					fmt.Printf("  ISBN: %s\n", book.ISBN)
					fmt.Printf("  Authors: %s\n", strings.Join(book.Authors, ", "))
					if book.Series != "" {
						fmt.Printf("  Series: %s\n", book.Series)
					}
					fmt.Printf("  Source: %s\n", source)
					fmt.Printf("  Added: %s\n", book.AddedAt.Format("2006-01-02"))
					fmt.Println()
				}

				return nil
			})
			if err != nil {
				log.Printf("Error reading book %s: %v", key, err)
			}
		}
		return nil
	})

	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total books: %d\n", bookCount)
	fmt.Printf("Synthetic ISBNs: %d\n", syntheticCount)
	for source, count := range bySource {
		fmt.Printf("Source %s: %d\n", source, count)
	}
}
