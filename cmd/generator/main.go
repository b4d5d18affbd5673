package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"wikitrivia"
)

func main() {
	var (
		topics     = flag.String("topics", "all", "Comma-separated category names, or 'all'")
		count      = flag.Int("questions", 40, "Total number of questions to generate")
		catalog    = flag.String("categories", "categories.json", "Path to the category catalog")
		dbPath     = flag.String("db", "", "SQLite database to write the batch to (skipped when empty)")
		outputFile = flag.String("output", "", "Output file for batch JSON (default: stdout when -db is unset)")
		endpoint   = flag.String("endpoint", wikitrivia.DefaultEndpoint, "SPARQL endpoint URL")
		qps        = flag.Float64("qps", 5, "Maximum SPARQL queries per second")
		timeout    = flag.Duration("timeout", 15*time.Minute, "Overall generation timeout")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	wikitrivia.SetVerbose(*verbose)

	cat, err := wikitrivia.LoadCatalog(*catalog)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	client := wikitrivia.NewWikidataClient(*endpoint, *qps)
	manager := wikitrivia.NewQuestionBatchManager(client, cat, wikitrivia.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	selected := strings.Split(*topics, ",")
	for i := range selected {
		selected[i] = strings.TrimSpace(selected[i])
	}

	batch, err := manager.Generate(ctx, selected, *count)
	if err != nil {
		log.Fatalf("Failed to generate questions: %v", err)
	}

	log.Printf("Generated %d questions", len(batch))

	if *dbPath != "" {
		db, err := wikitrivia.OpenDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.CloseDB()

		if err := db.CreateTables(); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		if err := db.ReplaceBatch(batch); err != nil {
			log.Fatalf("Failed to store batch: %v", err)
		}
		log.Printf("Batch stored in %s", *dbPath)
	}

	if *dbPath == "" || *outputFile != "" {
		data, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal batch: %v", err)
		}
		if *outputFile != "" {
			if err := os.WriteFile(*outputFile, data, 0644); err != nil {
				log.Fatalf("Failed to write output file: %v", err)
			}
			log.Printf("Batch written to %s", *outputFile)
		} else {
			fmt.Println(string(data))
		}
	}
}
