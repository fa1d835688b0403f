package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"eunomia/internal/config"
	"eunomia/internal/platform"
	"eunomia/internal/stats"
	"eunomia/internal/storage"
	"eunomia/internal/wave"
	api "eunomia/pkg/eunomia"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	if _, err := config.LoadEnv(""); err != nil {
		return err
	}
	rt := config.RuntimeFromEnv()

	switch args[0] {
	case "init":
		return runInit(ctx, rt, args[1:])
	case "reset":
		return runReset(ctx, rt, args[1:])
	case "run":
		return runRun(ctx, rt, args[1:])
	case "profiles":
		return runProfiles(ctx, rt, args[1:])
	case "sessions":
		return runSessions(ctx, rt, args[1:])
	case "show":
		return runShow(ctx, rt, args[1:])
	case "timeline":
		return runTimeline(ctx, rt, args[1:])
	case "report":
		return runReport(ctx, rt, args[1:])
	case "export":
		return runExport(ctx, rt, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "generate":
		return runGenerate(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	ward := platform.NewWard(platform.Config{Store: store})
	if err := ward.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	ward := platform.NewWard(platform.Config{Store: store})
	if err := ward.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	sessionID := fs.String("session-id", "", "explicit session id (optional)")
	citizenID := fs.String("citizen-id", "", "explicit citizen id (optional)")
	profileID := fs.String("profile", "", "profile archetype or stored profile id: baseline|docile|resistant|fragile|veteran")
	profileFile := fs.String("profile-file", "", "profile document path (JSON or YAML)")
	settingsFile := fs.String("settings-file", "", "settings document path (JSON or YAML)")
	scenarioPath := fs.String("scenario", "", "scenario document path describing the waveform source")
	sourceKind := fs.String("source", "", "source kind: constant|scripted|noisy (empty holds the profile targets)")
	bandsFlag := fs.String("bands", "", "comma-separated band powers for constant/noisy sources")
	noise := fs.Float64("noise", 0, "noise amplitude for the noisy source")
	seed := fs.Int64("seed", 0, "rng seed for the noisy source")
	duration := fs.Float64("duration", 0, "max session duration in simulated seconds (0 uses the runtime default)")
	recordEvery := fs.Int("record-every", 0, "timeline record cadence in ticks (0 uses the runtime default)")
	realtime := fs.Bool("realtime", false, "pace ticks to the wall clock instead of running flat out")
	storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profileID != "" && *profileFile != "" {
		return errors.New("use either --profile or --profile-file, not both")
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	bands, err := parseBandList(*bandsFlag)
	if err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *scenarioPath != "" {
		source, err := config.LoadScenario(*scenarioPath)
		if err != nil {
			return err
		}
		req.Source = source
	}
	if *configPath == "" && *scenarioPath == "" {
		req = api.RunRequest{
			SessionID: *sessionID,
			CitizenID: *citizenID,
			ProfileID: *profileID,
			Source: wave.Config{
				Kind:  *sourceKind,
				Bands: bands,
				Noise: *noise,
				Seed:  *seed,
			},
			MaxDurationSeconds: *duration,
			RecordEvery:        *recordEvery,
			Realtime:           *realtime,
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"session-id":   *sessionID,
			"citizen-id":   *citizenID,
			"profile":      *profileID,
			"source":       *sourceKind,
			"bands":        bands,
			"noise":        *noise,
			"seed":         *seed,
			"duration":     *duration,
			"record-every": *recordEvery,
			"realtime":     *realtime,
		})
		if err != nil {
			return err
		}
	}
	if *profileFile != "" {
		p, repairs, err := config.LoadProfile(*profileFile)
		if err != nil {
			return err
		}
		for _, repair := range repairs {
			fmt.Printf("profile_repair=%q\n", repair)
		}
		req.Profile = &p
		req.ProfileID = ""
	}
	if *settingsFile != "" {
		s, repairs, err := config.LoadSettings(*settingsFile)
		if err != nil {
			return err
		}
		for _, repair := range repairs {
			fmt.Printf("settings_repair=%q\n", repair)
		}
		req.Settings = &s
	}

	client, err := api.New(api.Options{
		StoreKind:   *storeKind,
		DBPath:      *dbPath,
		SessionsDir: rt.SessionsDir,
		ExportsDir:  rt.ExportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	for _, repair := range summary.SettingsRepairs {
		fmt.Printf("settings_repair=%q\n", repair)
	}
	fmt.Printf("session completed session_id=%s outcome=%s final_state=%s ticks=%d duration=%.2fs\n",
		summary.SessionID,
		summary.Outcome,
		summary.FinalState,
		summary.Ticks,
		summary.DurationSeconds,
	)
	fmt.Printf("final_score=%.4f final_instability=%.4f final_compliance=%.1f\n",
		summary.FinalScore,
		summary.FinalInstability,
		summary.FinalCompliance,
	)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runProfiles(ctx context.Context, rt config.Runtime, args []string) error {
	if len(args) == 0 {
		return errors.New("profiles requires a subcommand: list|show|save")
	}
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("profiles list", flag.ContinueOnError)
		jsonOut := fs.Bool("json", false, "emit profiles as JSON")
		storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
		dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		client, err := api.New(api.Options{
			StoreKind:   *storeKind,
			DBPath:      *dbPath,
			SessionsDir: rt.SessionsDir,
			ExportsDir:  rt.ExportsDir,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		profiles, err := client.Profiles(ctx)
		if err != nil {
			return err
		}
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(profiles)
		}
		for _, item := range profiles {
			fmt.Printf("id=%s name=%q origin=%s instability_rate=%.2f min_stimulation=%.1fs recovery=%.1fs starting_compliance=%.0f\n",
				item.ID,
				item.Name,
				item.Origin,
				item.Profile.InstabilityRate,
				item.Profile.MinStimulationSeconds,
				item.Profile.RecoverySeconds,
				item.Profile.StartingCompliance,
			)
		}
		return nil
	case "show":
		fs := flag.NewFlagSet("profiles show", flag.ContinueOnError)
		id := fs.String("id", "", "profile id")
		jsonOut := fs.Bool("json", false, "emit resolved profile as JSON")
		storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
		dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("profiles show requires --id")
		}

		client, err := api.New(api.Options{
			StoreKind:   *storeKind,
			DBPath:      *dbPath,
			SessionsDir: rt.SessionsDir,
			ExportsDir:  rt.ExportsDir,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		profiles, err := client.Profiles(ctx)
		if err != nil {
			return err
		}
		for _, item := range profiles {
			if item.ID != *id {
				continue
			}
			if *jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(item)
			}
			fmt.Printf("id=%s name=%q origin=%s instability_rate=%.2f min_stimulation=%.1fs recovery=%.1fs starting_compliance=%.0f\n",
				item.ID,
				item.Name,
				item.Origin,
				item.Profile.InstabilityRate,
				item.Profile.MinStimulationSeconds,
				item.Profile.RecoverySeconds,
				item.Profile.StartingCompliance,
			)
			fmt.Printf("bands targets=%v tolerances=%v weights=%v\n",
				item.Profile.Targets,
				item.Profile.Tolerances,
				item.Profile.Weights,
			)
			return nil
		}
		return fmt.Errorf("profile not found: %s", *id)
	case "save":
		fs := flag.NewFlagSet("profiles save", flag.ContinueOnError)
		file := fs.String("file", "", "profile document path (JSON or YAML)")
		storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
		dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *file == "" {
			return errors.New("profiles save requires --file")
		}

		p, repairs, err := config.LoadProfile(*file)
		if err != nil {
			return err
		}

		client, err := api.New(api.Options{
			StoreKind:   *storeKind,
			DBPath:      *dbPath,
			SessionsDir: rt.SessionsDir,
			ExportsDir:  rt.ExportsDir,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		saved, _, err := client.SaveProfile(ctx, p)
		if err != nil {
			return err
		}
		for _, repair := range repairs {
			fmt.Printf("profile_repair=%q\n", repair)
		}
		fmt.Printf("profile saved id=%s name=%q store=%s\n", saved.ID, saved.Name, *storeKind)
		return nil
	default:
		return fmt.Errorf("unsupported profiles subcommand: %s", args[0])
	}
}

func runSessions(_ context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max sessions to list")
	jsonOut := fs.Bool("json", false, "emit sessions list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListSessionIndex(rt.SessionsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no sessions found")
		return nil
	}

	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("session_id=%s created_at=%s citizen_id=%s profile=%s source=%s outcome=%s final_state=%s ticks=%d duration=%.2fs\n",
			e.SessionID,
			e.CreatedAtUTC,
			e.CitizenID,
			e.ProfileID,
			e.SourceKind,
			e.Outcome,
			e.FinalState,
			e.Ticks,
			e.DurationSeconds,
		)
	}
	return nil
}

func runShow(ctx context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	sessionID := fs.String("session-id", "", "session id")
	latest := fs.Bool("latest", false, "show the most recent session from the session index")
	jsonOut := fs.Bool("json", false, "emit session record as JSON")
	storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID != "" && *latest {
		return errors.New("use either --session-id or --latest, not both")
	}
	if *sessionID == "" && !*latest {
		return errors.New("show requires --session-id or --latest")
	}

	client, err := api.New(api.Options{
		StoreKind:   *storeKind,
		DBPath:      *dbPath,
		SessionsDir: rt.SessionsDir,
		ExportsDir:  rt.ExportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	record, err := client.Show(ctx, api.ShowRequest{
		SessionID: *sessionID,
		Latest:    *latest,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	fmt.Printf("session_id=%s citizen_id=%s profile=%s source=%q outcome=%s final_state=%s ticks=%d duration=%.2fs created_at=%s\n",
		record.ID,
		record.CitizenID,
		record.ProfileID,
		record.SourceName,
		record.Outcome,
		record.FinalState,
		record.Ticks,
		record.DurationSeconds,
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	fmt.Printf("final_score=%.4f final_instability=%.4f final_compliance=%.1f\n",
		record.FinalScore,
		record.FinalInstability,
		record.FinalCompliance,
	)
	for _, event := range record.Events {
		fmt.Printf("event kind=%s tick=%d at=%.2fs\n", event.Kind, event.Tick, event.At)
	}
	return nil
}

func runTimeline(ctx context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	sessionID := fs.String("session-id", "", "session id")
	latest := fs.Bool("latest", false, "show the timeline for the most recent session from the session index")
	limit := fs.Int("limit", 50, "max timeline rows to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit timeline rows as JSON")
	storeKind := fs.String("store", rt.StoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", rt.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID != "" && *latest {
		return errors.New("use either --session-id or --latest, not both")
	}
	if *sessionID == "" && !*latest {
		return errors.New("timeline requires --session-id or --latest")
	}

	client, err := api.New(api.Options{
		StoreKind:   *storeKind,
		DBPath:      *dbPath,
		SessionsDir: rt.SessionsDir,
		ExportsDir:  rt.ExportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	points, err := client.Timeline(ctx, api.TimelineRequest{
		SessionID: *sessionID,
		Latest:    *latest,
		Limit:     *limit,
	})
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Println("no timeline recorded")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}

	for _, p := range points {
		fmt.Printf("tick=%d at=%.3fs state=%s raw_score=%.4f score=%.4f instability=%.4f compliance=%.1f multiplier=%.2f\n",
			p.Tick,
			p.At,
			p.State,
			p.RawScore,
			p.Score,
			p.Instability,
			p.Compliance,
			p.Multiplier,
		)
	}
	return nil
}

func runReport(_ context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit outcome report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := stats.ListSessionIndex(rt.SessionsDir)
	if err != nil {
		return err
	}
	report := stats.BuildOutcomeReport(entries)
	if report.Total.Sessions == 0 {
		fmt.Println("no sessions indexed")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("total sessions=%d mean_duration=%.2fs std_duration=%.2fs mean_ticks=%.1f\n",
		report.Total.Sessions,
		report.Total.MeanDurationSeconds,
		report.Total.StdDurationSeconds,
		report.Total.MeanTicks,
	)
	outcomes := make([]string, 0, len(report.Total.Outcomes))
	for outcome := range report.Total.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Printf("outcome name=%s count=%d\n", outcome, report.Total.Outcomes[outcome])
	}
	for _, profileID := range report.Profiles {
		tally := report.ByProfile[profileID]
		fmt.Printf("profile id=%s sessions=%d mean_duration=%.2fs mean_ticks=%.1f\n",
			profileID,
			tally.Sessions,
			tally.MeanDurationSeconds,
			tally.MeanTicks,
		)
	}
	return nil
}

func runExport(_ context.Context, rt config.Runtime, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sessionID := fs.String("session-id", "", "session id")
	latest := fs.Bool("latest", false, "export the most recent session from the session index")
	outDir := fs.String("out", rt.ExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID != "" && *latest {
		return errors.New("use either --session-id or --latest, not both")
	}
	if *sessionID == "" && !*latest {
		return errors.New("export requires --session-id or --latest")
	}
	if *latest {
		entries, err := stats.ListSessionIndex(rt.SessionsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no sessions available to export")
		}
		*sessionID = entries[0].SessionID
	}

	exportedDir, err := stats.ExportSessionArtifacts(rt.SessionsDir, *sessionID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported session_id=%s to=%s\n", *sessionID, filepath.Clean(exportedDir))
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	profileFile := fs.String("profile-file", "", "profile document path (JSON or YAML)")
	settingsFile := fs.String("settings-file", "", "settings document path (JSON or YAML)")
	scenarioPath := fs.String("scenario", "", "scenario document path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profileFile == "" && *settingsFile == "" && *scenarioPath == "" {
		return errors.New("validate requires --profile-file, --settings-file, or --scenario")
	}

	if *profileFile != "" {
		p, repairs, err := config.LoadProfile(*profileFile)
		if err != nil {
			return err
		}
		for _, repair := range repairs {
			fmt.Printf("profile_repair=%q\n", repair)
		}
		fmt.Printf("profile ok id=%s name=%q repairs=%d\n", p.ID, p.Name, len(repairs))
	}
	if *settingsFile != "" {
		s, repairs, err := config.LoadSettings(*settingsFile)
		if err != nil {
			return err
		}
		for _, repair := range repairs {
			fmt.Printf("settings_repair=%q\n", repair)
		}
		fmt.Printf("settings ok sample_rate_hz=%.1f repairs=%d\n", s.SampleRateHz, len(repairs))
	}
	if *scenarioPath != "" {
		cfg, err := config.LoadScenario(*scenarioPath)
		if err != nil {
			return err
		}
		source, err := wave.BuildSource(cfg)
		if err != nil {
			return err
		}
		kind := wave.NormalizeKind(cfg.Kind)
		if kind == "" {
			kind = wave.ConstantSourceKind
		}
		fmt.Printf("scenario ok kind=%s name=%s segments=%d\n", kind, source.Name(), len(cfg.Segments))
	}
	return nil
}

func parseBandList(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse bands value %q: %w", part, err)
		}
		out = append(out, value)
	}
	return out, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: eunomiactl <init|reset|run|profiles|sessions|show|timeline|report|export|validate|generate> [flags]", msg)
}
