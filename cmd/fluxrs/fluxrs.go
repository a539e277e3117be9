// Command fluxrs drives the chamber flux analysis pipeline: schema
// migrations, cycle recomputation, the HTML flux report and per-cycle
// plots.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kootepe/fluxrs-sub001/internal/config"
	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/db"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/report"
	"github.com/kootepe/fluxrs-sub001/internal/version"
)

var (
	configPath    = flag.String("config", config.DefaultConfigPath, "path to project config JSON")
	dbPath        = flag.String("db", "", "sqlite database path (overrides config)")
	migrationsDir = flag.String("migrations", "migrations", "migrations directory")
	outDir        = flag.String("out", "out", "output directory for reports and plots")
	modelName     = flag.String("model", "linear", "model for reports: linear, poly, roblin, exponential")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: fluxrs [flags] <command>

Commands:
  migrate up|down|status|force <v>   manage the database schema
  recompute                          re-run the analysis pipeline on every cycle
  report                             write the HTML flux report
  plot                               write per-cycle concentration plots
  version                            print the build identity

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	if args[0] == "version" {
		fmt.Printf("fluxrs %s\n", version.String())
		return
	}

	cfg := config.EmptyProjectConfig()
	if *configPath != "" {
		loaded, err := config.LoadProjectConfig(*configPath)
		switch {
		case err == nil:
			cfg = loaded
		case *configPath == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist):
			// No config at the default path: run on built-in defaults.
		default:
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	path := cfg.GetDBPath()
	if *dbPath != "" {
		path = *dbPath
	}

	database, err := db.NewDB(path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch args[0] {
	case "migrate":
		runMigrate(database, args[1:])

	case "recompute":
		if err := database.CheckMigrations(*migrationsDir); err != nil {
			log.Fatalf("%v", err)
		}
		runRecompute(database, cfg)

	case "report":
		runReport(database, cfg)

	case "plot":
		runPlot(database, cfg)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}
}

func runMigrate(database *db.DB, args []string) {
	if len(args) < 1 {
		log.Fatal("Usage: fluxrs migrate up|down|status|force <version>")
	}
	switch args[0] {
	case "up":
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("All migrations applied")

	case "down":
		if err := database.MigrateDown(*migrationsDir); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Rolled back one migration")

	case "status":
		version, dirty, err := database.MigrateVersion(*migrationsDir)
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		log.Printf("Current version: %d (dirty=%v)", version, dirty)
		latest, err := db.GetLatestMigrationVersion(*migrationsDir)
		if err != nil {
			log.Fatalf("Failed to read latest migration version: %v", err)
		}
		log.Printf("Latest available: %d", latest)

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: fluxrs migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version %q: %v", args[1], err)
		}
		if err := database.MigrateForce(*migrationsDir, version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Forced version to %d", version)

	default:
		log.Fatalf("Unknown migrate action: %s", args[0])
	}
}

func loadProjectCycles(database *db.DB, cfg *config.ProjectConfig) (*db.Project, []*cycle.Cycle) {
	project := &db.Project{
		Name:             cfg.GetName(),
		MainGas:          cfg.GetMainGas(),
		MainInstrumentID: cfg.GetMainInstrumentID(),
	}
	if err := database.UpsertProject(project); err != nil {
		log.Fatalf("Failed to load project: %v", err)
	}

	cycles, err := database.LoadCycles(project, db.LoadDefaults{
		AirTemperatureC: cfg.GetAirTemperatureC(),
		AirPressureHPa:  cfg.GetAirPressureHPa(),
		Chamber:         cfg.GetChamber(),
		Deadband:        cfg.GetDeadband(),
		MinCalcLen:      cfg.GetMinCalcLen(),
	})
	if err != nil {
		log.Fatalf("Failed to load cycles: %v", err)
	}
	return project, cycles
}

func runRecompute(database *db.DB, cfg *config.ProjectConfig) {
	_, cycles := loadProjectCycles(database, cfg)
	if len(cycles) == 0 {
		log.Println("No cycles to recompute")
		return
	}

	mode := cfg.GetMode()
	deadband := cfg.GetDeadband()
	thresholds := cfg.GetThresholds()

	var valid int
	for _, c := range cycles {
		c.Init(mode, deadband)
		if kind, ok := c.BestModelByAIC(c.MainKey()); ok {
			c.SetAutomaticValid(c.IsValidByThreshold(c.MainKey(), kind, thresholds))
		} else {
			c.SetAutomaticValid(false)
		}
		if c.IsValid {
			valid++
		}
		if err := database.SaveCycle(c); err != nil {
			log.Fatalf("Failed to save cycle %s@%d: %v", c.ChamberID, c.StartTS(), err)
		}
	}
	log.Printf("Recomputed %d cycles (%d valid)", len(cycles), valid)
}

func runReport(database *db.DB, cfg *config.ProjectConfig) {
	project, err := database.GetProject(cfg.GetName())
	if err != nil {
		log.Fatalf("Failed to load project: %v", err)
	}
	rows, err := database.LoadFluxes(project.ID)
	if err != nil {
		log.Fatalf("Failed to load fluxes: %v", err)
	}

	if _, err := flux.ParseModelKind(*modelName); err != nil {
		log.Fatalf("Invalid model: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	r := &report.FluxReport{
		Title: fmt.Sprintf("%s fluxes", project.Name),
		Model: *modelName,
		Unit:  cfg.GetFluxUnit(),
		Rows:  rows,
	}
	file := filepath.Join(*outDir, "fluxes.html")
	if err := r.WriteHTMLFile(file); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Printf("Wrote %s (%d flux rows)", file, len(rows))
}

func runPlot(database *db.DB, cfg *config.ProjectConfig) {
	_, cycles := loadProjectCycles(database, cfg)
	if len(cycles) == 0 {
		log.Println("No cycles to plot")
		return
	}

	kind, err := flux.ParseModelKind(*modelName)
	if err != nil {
		log.Fatalf("Invalid model: %v", err)
	}

	for _, c := range cycles {
		c.ComputeAllFluxes()
	}

	cp := &report.CyclePlotter{OutputDir: filepath.Join(*outDir, "cycles"), Kind: kind}
	for _, c := range cycles {
		if err := cp.PlotCycle(c); err != nil {
			log.Fatalf("Failed to plot cycle %d: %v", c.ID, err)
		}
	}
	log.Printf("Wrote plots for %d cycles to %s", len(cycles), cp.OutputDir)
}
