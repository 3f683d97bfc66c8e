package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/plated-ai/nutrition.report/internal/auditdb"
	"github.com/plated-ai/nutrition.report/internal/config"
	"github.com/plated-ai/nutrition.report/internal/foodvision"
	"github.com/plated-ai/nutrition.report/internal/monitoring"
	"github.com/plated-ai/nutrition.report/internal/replay"
	"github.com/plated-ai/nutrition.report/internal/report"
	"github.com/plated-ai/nutrition.report/internal/version"
)

var (
	sessionPath = flag.String("in", "", "Recorded session file to analyze (required)")
	outPath     = flag.String("out", "", "Write result JSON to this file (default stdout)")
	reportPath  = flag.String("report", "", "Write an HTML report to this file")
	configPath  = flag.String("config", "", "Tuning config JSON (partial overrides)")
	auditPath   = flag.String("audit", "", "Sqlite audit database path (optional)")
	jobID       = flag.String("job", "", "Job identifier (default: random)")
	debug       = flag.Bool("debug", false, "Enable per-detection debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("nutrition-report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *sessionPath == "" {
		flag.Usage()
		log.Fatal("-in session file is required")
	}
	if *debug {
		monitoring.EnableDebug(true)
	}

	cfg := foodvision.DefaultConfig()
	if *configPath != "" {
		tuning, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		tuning.Apply(&cfg)
	}

	session, err := replay.Load(*sessionPath)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	pipeline, err := foodvision.New(cfg, foodvision.Collaborators{
		Detector: session,
		Segment:  session,
		Depth:    session,
		Lookup:   foodvision.NewStaticKnowledgeBase(),
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	job := *jobID
	if job == "" {
		job = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Analyze(ctx, session.Frames(), job)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	// Persistence and reporting are best-effort; the result itself has
	// already been computed.
	if *auditPath != "" {
		if db, err := auditdb.Open(*auditPath); err != nil {
			log.Printf("failed to open audit db: %v", err)
		} else {
			if runID, err := db.SaveResult(ctx, result); err != nil {
				log.Printf("failed to store run: %v", err)
			} else {
				log.Printf("stored audit run %s", runID)
			}
			db.Close()
		}
	}
	if *reportPath != "" {
		if err := report.WriteFile(*reportPath, result); err != nil {
			log.Printf("failed to write report: %v", err)
		}
	}

	if err := writeResult(result, *outPath); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}

func writeResult(result *foodvision.Result, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
