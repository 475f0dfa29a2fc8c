// Command validate checks that the serving artifacts agree with each other
// before they are deployed: the entity registry, the scaler artifact, the model
// artifact and, optionally, the reading database.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -registry data/entity_metadata.json \
//	  -scalers data/scalers.json \
//	  -model data/model.json \
//	  -readings
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/aq-forecast-service/internal/adapter/storage"
	"github.com/couchcryptid/aq-forecast-service/internal/config"
	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/couchcryptid/aq-forecast-service/internal/model"
	"github.com/couchcryptid/aq-forecast-service/internal/registry"
	"github.com/couchcryptid/aq-forecast-service/internal/scaler"
	"github.com/couchcryptid/aq-forecast-service/internal/timeseries"
	"github.com/joho/godotenv"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	registryPath := flag.String("registry", cfg.RegistryPath, "entity metadata JSON")
	scalersPath := flag.String("scalers", cfg.ScalersPath, "scaler artifact JSON")
	modelPath := flag.String("model", cfg.ModelPath, "model artifact JSON")
	readings := flag.Bool("readings", false, "also check reading coverage in the configured database")
	flag.Parse()

	os.Exit(run(cfg, *registryPath, *scalersPath, *modelPath, *readings))
}

func run(cfg *config.Config, registryPath, scalersPath, modelPath string, checkReadings bool) int {
	fmt.Println("=== Forecast Artifact Validation ===")
	fmt.Println()

	reg, warnings, err := registry.LoadFile(registryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load registry: %v\n", err)
		return 1
	}
	scalers, err := scaler.LoadFile(scalersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load scalers: %v\n", err)
		return 1
	}
	network, err := model.LoadDenseNetworkFile(modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load model: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRegistry(reg, warnings),
		validateScalers(reg, scalers),
		validateModel(network, scalers),
	}
	if checkReadings {
		store, err := loadReadings(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load readings: %v\n", err)
			return 1
		}
		phases = append(phases, validateCoverage(store, scalers))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Artifacts: %d cities, %d scalers, model %q (window %d)\n",
		reg.Len(), scalers.Len(), network.Name, network.WindowSize())

	for _, p := range phases {
		if p.passed() && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Printf("  Note: %s\n", n)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadReadings(cfg *config.Config) (*timeseries.Store, error) {
	ctx := context.Background()
	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	readings, err := storage.NewRepository(db).LoadReadings(ctx)
	if err != nil {
		return nil, err
	}
	store := timeseries.NewStore()
	store.Append(readings...)
	return store, nil
}

// ── Validation phases ──

func validateRegistry(reg *registry.Registry, warnings []*domain.ConfigError) *phase {
	p := &phase{name: "Phase 1: Entity Registry"}
	if reg.Len() == 0 {
		p.errorf("registry has no cities")
	}
	for _, w := range warnings {
		p.notef("%s", w.Error())
	}
	unmappable := 0
	for _, c := range reg.Cities() {
		if !c.Mappable {
			unmappable++
		}
	}
	if unmappable > 0 {
		p.notef("%d cities have no coordinates and will be left off the map", unmappable)
	}
	return p
}

func validateScalers(reg *registry.Registry, scalers *scaler.Registry) *phase {
	p := &phase{name: "Phase 2: Scaler Artifact"}
	if scalers.Len() == 0 {
		p.errorf("scaler artifact is empty")
	}
	for _, w := range reg.Reconcile("scalers", scalers.Cities()) {
		p.errorf("%s", w.Error())
	}
	for _, c := range reg.Cities() {
		if _, err := scalers.Get(c.Name); err != nil {
			p.notef("%s has no scaler, its forecast will be absent", c.Name)
		}
	}
	return p
}

func validateModel(network *model.DenseNetwork, scalers *scaler.Registry) *phase {
	p := &phase{name: "Phase 3: Model Artifact"}
	if w := network.WindowSize(); w != domain.LookbackWindow {
		p.errorf("model window %d, want %d", w, domain.LookbackWindow)
		return p
	}
	samples := map[string]float64{"zeros": 0, "midpoint": 0.5, "ones": 1}
	for name, v := range samples {
		window := make([]float64, network.WindowSize())
		for i := range window {
			window[i] = v
		}
		y, err := network.Predict(window)
		if err != nil {
			p.errorf("predict on %s window: %v", name, err)
			continue
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			p.errorf("predict on %s window: non-finite output %v", name, y)
		}
	}
	for _, city := range scalers.Cities() {
		s, _ := scalers.Get(city)
		if s.Max == s.Min {
			p.notef("%s scaler has a constant range (%v)", city, s.Min)
		}
	}
	return p
}

func validateCoverage(store *timeseries.Store, scalers *scaler.Registry) *phase {
	p := &phase{name: "Phase 4: Reading Coverage"}
	for _, city := range scalers.Cities() {
		n := len(domain.PresentValues(store.DailySeries(city, domain.PM25)))
		if n < domain.MinForecastHistory {
			p.notef("%s has %d daily PM2.5 values, needs %d to forecast", city, n, domain.MinForecastHistory)
		}
	}
	if len(store.Cities()) == 0 {
		p.errorf("reading database is empty")
	}
	return p
}
