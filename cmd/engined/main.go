package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kotoba-labs/classroom-engine/internal/aggregate"
	"github.com/kotoba-labs/classroom-engine/internal/auth"
	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/config"
	"github.com/kotoba-labs/classroom-engine/internal/httpapi"
	"github.com/kotoba-labs/classroom-engine/internal/report"
	"github.com/kotoba-labs/classroom-engine/internal/sampler"
	"github.com/kotoba-labs/classroom-engine/internal/sources"
	"github.com/kotoba-labs/classroom-engine/internal/store"
	"github.com/kotoba-labs/classroom-engine/internal/submission"
	"github.com/kotoba-labs/classroom-engine/internal/testdef"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "engined",
		Short: "Assessment and grading engine for classroom platforms",
	}

	serve := serveCmd()
	root.AddCommand(serve, genCmd())

	// Bare `engined` starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP engine server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
	f.String("db-dsn", "", "Database DSN (driver default when empty)")
	f.String("jwt-secret", "", "HMAC secret for session tokens")
	f.String("admin-user", "", "Bootstrap teacher account name")
	f.String("admin-pass-hash", "", "Bcrypt hash for the bootstrap account")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins")
	f.String("templates", "", "Path to a JSON file of reusable test templates")
	f.String("report-url", "", "External gradebook base URL (sync disabled when empty)")
	f.String("report-token", "", "Bearer token for gradebook pushes")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func genCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a test offline and print it as JSON",
		RunE:  runGen,
	}
	f := cmd.Flags()
	f.String("db-driver", "sqlite", "Database driver (sqlite, postgres)")
	f.String("db-dsn", "", "Database DSN (driver default when empty)")
	f.String("templates", "", "Path to a JSON file of reusable test templates")
	f.StringP("level", "l", "N5", "Course level to draw questions for")
	f.IntP("count", "n", 10, "Number of questions")
	f.Float64P("points", "p", 100, "Total point budget")
	f.StringP("sources", "s", "flashcard=50,bank=50", "Enabled sources with mix percents")
	f.StringP("difficulty", "d", "medium", "Difficulty (easy, medium, hard, or mixed)")
	f.String("mix", "30,50,20", "Easy,medium,hard split used with -d mixed")
	f.String("title", "Generated test", "Title for the definition")
	f.String("classroom", "", "Classroom the definition belongs to")
	f.Int64("seed", 0, "Random seed (0 = time-based)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var level slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// viperForCmd binds a command's flags and ENGINED_* environment variables to
// a fresh viper instance, over the config.FromEnv defaults.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ENGINED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("engined")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/engined")
	v.AddConfigPath("/etc/engined")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	}
	return v
}

func resolveConfig(v *viper.Viper) config.Config {
	cfg := config.FromEnv()
	if s := v.GetString("addr"); s != "" {
		cfg.HTTPAddr = s
	}
	if s := v.GetString("db-driver"); s != "" {
		cfg.DBDriver = s
	}
	if s := v.GetString("db-dsn"); s != "" {
		cfg.DBDSN = s
	}
	if s := v.GetString("jwt-secret"); s != "" {
		cfg.JWTSecret = s
	}
	if s := v.GetString("admin-user"); s != "" {
		cfg.AdminUser = s
	}
	if s := v.GetString("admin-pass-hash"); s != "" {
		cfg.AdminPassHash = s
	}
	if ss := v.GetStringSlice("cors-origins"); len(ss) > 0 {
		cfg.CORSOrigins = ss
	}
	return cfg
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := resolveConfig(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st := store.NewSQLStore(db, store.Driver(cfg.DBDriver))
	events := store.NewEventRepo(db)
	rm := aggregate.NewReadModel(st)
	events.OnAppend(func(e store.Event) { rm.Invalidate(e.ClassroomID) })

	providers := []sources.Provider{
		sources.NewFlashcardProvider(db),
		sources.NewBankProvider(db),
	}
	if path := v.GetString("templates"); path != "" {
		loader, err := templateLoader(path)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
		providers = append(providers, sources.NewTemplateProvider(loader))
	}

	var dispatcher *report.Dispatcher
	if url := v.GetString("report-url"); url != "" {
		dispatcher = report.New(st, report.NewHTTPClient(url, v.GetString("report-token")), time.Now)
	}

	handler := httpapi.New(httpapi.Deps{
		Store:      st,
		Subs:       submission.NewService(st),
		Registry:   sources.NewRegistry(providers...),
		ReadModel:  rm,
		Events:     events,
		Dispatcher: dispatcher,
		Auth:       auth.NewService(cfg.JWTSecret),
		Accounts: []auth.Account{
			{Username: cfg.AdminUser, PassHash: cfg.AdminPassHash, Role: "teacher"},
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("engine listening", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runGen(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := resolveConfig(v)

	ctx := context.Background()
	db, err := store.Open(ctx, store.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	providers := []sources.Provider{
		sources.NewFlashcardProvider(db),
		sources.NewBankProvider(db),
	}
	if path := v.GetString("templates"); path != "" {
		loader, err := templateLoader(path)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}
		providers = append(providers, sources.NewTemplateProvider(loader))
	}

	enabled, err := parseSourceMix(v.GetString("sources"))
	if err != nil {
		return err
	}
	pools, err := sources.NewRegistry(providers...).Pools(ctx, v.GetString("level"), enabled)
	if err != nil {
		return err
	}

	req := sampler.Request{
		Count:       v.GetInt("count"),
		TotalPoints: v.GetFloat64("points"),
		Sources:     pools,
	}
	if d := v.GetString("difficulty"); d == "mixed" {
		mix, err := parseDifficultyMix(v.GetString("mix"))
		if err != nil {
			return err
		}
		req.Mix = mix
	} else {
		req.Difficulty = bank.Difficulty(d)
	}

	seed := v.GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	qs, err := sampler.Generate(req, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}

	d := testdef.New(v.GetString("classroom"), v.GetString("title"), testdef.KindTest, qs)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// parseSourceMix parses "flashcard=50,bank=50" into enabled-source weights.
func parseSourceMix(s string) (map[sampler.SourceKind]float64, error) {
	out := map[sampler.SourceKind]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad source spec %q (want kind=percent)", part)
		}
		pct, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad percent in %q: %w", part, err)
		}
		out[sampler.SourceKind(kv[0])] = pct
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}
	return out, nil
}

func parseDifficultyMix(s string) (*sampler.DifficultyMix, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bad mix %q (want easy,medium,hard)", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad mix %q: %w", s, err)
		}
		vals[i] = f
	}
	return &sampler.DifficultyMix{Easy: vals[0], Medium: vals[1], Hard: vals[2]}, nil
}

// templateLoader reads a JSON array of templates once and serves the
// questions of those matching the requested level.
func templateLoader(path string) (func(ctx context.Context, level string) ([]bank.Question, error), error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var templates []testdef.Template
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, err
	}
	return func(_ context.Context, level string) ([]bank.Question, error) {
		var out []bank.Question
		for _, t := range templates {
			if t.Level != level {
				continue
			}
			out = append(out, bank.Clone(t.Questions)...)
		}
		return out, nil
	}, nil
}
