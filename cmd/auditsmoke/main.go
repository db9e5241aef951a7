// Command auditsmoke runs one audit end to end and prints the result,
// a quick sanity harness for rule or KPI changes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/asoforge/metascore/pkg/audit"
)

func main() {
	title := flag.String("title", "Duolingo: Language Lessons", "listing title")
	subtitle := flag.String("subtitle", "Learn Spanish, French & more", "listing subtitle")
	vertical := flag.String("vertical", "education", "vertical rule layer")
	market := flag.String("market", "en-us", "market rule layer")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	o, err := audit.New(audit.WithLogger(logger))
	if err != nil {
		log.Fatalf("orchestrator init failed: %v", err)
	}

	res, err := o.Evaluate(audit.Metadata{
		Title:    *title,
		Subtitle: *subtitle,
	}, *vertical, *market, nil)
	if err != nil {
		log.Fatalf("evaluate failed: %v", err)
	}

	fmt.Printf("title    %6.2f\n", res.TitleScore)
	fmt.Printf("subtitle %6.2f\n", res.SubtitleScore)
	fmt.Printf("overall  %6.2f\n", res.OverallScore)
	for _, r := range res.Recommendations {
		fmt.Printf("  [%s] %s: %s\n", r.Severity, r.ID, r.Message)
	}
	for _, w := range res.Provenance.Warnings {
		fmt.Printf("  warning %s/%s: %s\n", w.Code, w.Subject, w.Message)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatalf("encode failed: %v", err)
	}
	fmt.Println(string(out))
}
