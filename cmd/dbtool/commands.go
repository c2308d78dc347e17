package main

import (
	"database/sql"
	"dispatch-coordination-service/internal/adapters/repositories"
	"dispatch-coordination-service/internal/api/dto"
	"dispatch-coordination-service/internal/config"
	"dispatch-coordination-service/internal/platform/db"
	"dispatch-coordination-service/internal/platform/logging"
	"dispatch-coordination-service/internal/services"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "dbtool",
	Short: "Maintenance tasks for the dispatch database",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logging.New(cfg.Log.Level, true)
	},
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the schema if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		log.Info().Str("driver", cfg.Database.Driver).Msg("initializing database schema")
		if err := repositories.InitSchema(conn); err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		log.Info().Msg("schema ready")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert pending loads from a JSON file; existing ids are skipped",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := repositories.InitSchema(conn); err != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}

		store := repositories.NewSQLStore(conn, cfg.Database.Driver)
		n, err := repositories.SeedFromJSON(cmd.Context(), store, path)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		log.Info().Int("inserted", n).Str("file", path).Msg("seeding complete")
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the stop order in a JSON route request and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}

		var req dto.OptimizeRouteRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("parse %q: %w", path, err)
		}

		opts := services.RouteOptions{
			StartIndex:     req.StartIndex,
			StartTime:      firstNonEmpty(req.StartTime, cfg.Route.StartTime),
			AvgSpeedMph:    req.AvgSpeedMph,
			MinutesPerStop: req.MinutesPerStop,
			ReturnToStart:  req.ReturnToStart,
		}
		if opts.AvgSpeedMph == nil {
			opts.AvgSpeedMph = &cfg.Route.AvgSpeedMph
		}
		if opts.MinutesPerStop == nil {
			opts.MinutesPerStop = &cfg.Route.MinutesPerStop
		}

		route, err := services.OptimizeRoute(req.Points(), opts)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dto.FromRoute(route))
	},
}

func init() {
	seedCmd.Flags().String("file", config.Get("SEED_PATH", "data/seeds/loads.json"), "path to the seed JSON file")
	optimizeCmd.Flags().String("file", "", "path to a route request JSON file")
	_ = optimizeCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(initCmd, seedCmd, optimizeCmd)
}

func openDB() (*sql.DB, error) {
	return db.Open(cfg.Database.Driver, cfg.Database.DSN)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
