package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fishlog/backup"
	"fishlog/export"
	"fishlog/logbook"
	"fishlog/store"
	"fishlog/weather"
)

// open returns a logbook over the configured database. The caller closes the store.
func (a *app) open(withWeather bool) (*logbook.Logbook, *store.SQLite, error) {
	st, err := store.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	var wf weather.Fetcher
	if withWeather {
		wf = weather.NewClient(a.cfg.OpenMeteoAPIEndpoint, a.cfg.WeatherTimeout())
	}
	return logbook.New(st, wf), st, nil
}

func (a *app) botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve the Telegram chat and scheduled backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), a.cfg)
		},
	}
}

func (a *app) moonCmd() *cobra.Command {
	var at string
	var millis int64
	cmd := &cobra.Command{
		Use:   "moon",
		Short: "Print the moon phase and illumination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now()
			switch {
			case cmd.Flags().Changed("millis"):
				t = time.UnixMilli(millis)
			case at != "":
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				t = parsed
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatMoon(t, a.cfg.Location()))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "instant in RFC3339 (default now)")
	cmd.Flags().Int64Var(&millis, "millis", 0, "instant in milliseconds since the Unix epoch")
	return cmd
}

func (a *app) tripCmd() *cobra.Command {
	trip := &cobra.Command{
		Use:   "trip",
		Short: "Start or end a fishing trip",
	}

	var draft logbook.TripDraft
	start := &cobra.Command{
		Use:   "start [name]",
		Short: "Start a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			book, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			draft.Name = strings.Join(args, " ")
			t, err := book.StartTrip(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trip #%d started\n%s\n", t.ID, formatTrip(*t, a.cfg.Location()))
			return nil
		},
	}
	start.Flags().StringVar(&draft.Waterway, "waterway", "", "river, lake or spot")
	start.Flags().StringVar(&draft.Notes, "notes", "", "free text")

	end := &cobra.Command{
		Use:   "end",
		Short: "End the active trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := book.EndActiveTrip(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trip #%d ended\n%s\n", t.ID, formatTrip(*t, a.cfg.Location()))
			return nil
		},
	}

	trip.AddCommand(start, end)
	return trip
}

func (a *app) catchCmd() *cobra.Command {
	catch := &cobra.Command{
		Use:   "catch",
		Short: "Record, list, show and delete catches",
	}
	catch.AddCommand(a.catchAddCmd(), a.catchListCmd(), a.catchShowCmd(), a.catchDeleteCmd())
	return catch
}

func (a *app) catchAddCmd() *cobra.Command {
	var (
		draft              logbook.CatchDraft
		length, weight     float64
		lat, lon, accuracy float64
		at                 string
		noWeather          bool
	)
	cmd := &cobra.Command{
		Use:   "add SPECIES...",
		Short: "Record a catch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			draft.Species = strings.Join(args, " ")
			if flags.Changed("length") {
				draft.LengthCm = &length
			}
			if flags.Changed("weight") {
				draft.WeightKg = &weight
			}
			if flags.Changed("lat") != flags.Changed("lon") {
				return errors.New("--lat and --lon go together")
			}
			if flags.Changed("lat") {
				draft.Latitude, draft.Longitude = &lat, &lon
			}
			if flags.Changed("accuracy") {
				draft.AccuracyM = &accuracy
			}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				draft.Time = t
			}

			book, st, err := a.open(!noWeather)
			if err != nil {
				return err
			}
			defer st.Close()

			c, err := book.RecordCatch(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCatchRow(*c, a.cfg.Location()))
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&length, "length", 0, "length in cm")
	f.Float64Var(&weight, "weight", 0, "weight in kg")
	f.StringVar(&draft.Lure, "lure", "", "lure or bait")
	f.StringVar(&draft.Notes, "notes", "", "free text")
	f.Float64Var(&lat, "lat", 0, "latitude")
	f.Float64Var(&lon, "lon", 0, "longitude")
	f.Float64Var(&accuracy, "accuracy", 0, "GPS accuracy in metres")
	f.StringVar(&draft.PhotoRef, "photo", "", "photo reference")
	f.StringVar(&at, "at", "", "time of the catch in RFC3339 (default now)")
	f.BoolVar(&noWeather, "no-weather", false, "skip the weather lookup")
	return cmd
}

func (a *app) catchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			catches, err := st.ListCatches(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(catches) == 0 {
				fmt.Fprintln(out, noCatchesMessage)
				return nil
			}
			for i, c := range catches {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, formatCatchRow(c, a.cfg.Location()))
			}
			return nil
		},
	}
}

func (a *app) catchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show every field of a catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := parseID(args[0])
			if !ok {
				return fmt.Errorf("invalid catch id %q", args[0])
			}
			_, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			c, err := st.GetCatch(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("catch #%d: %w", id, err)
			}
			var trip *store.Trip
			if c.TripID != nil {
				trips, err := st.ListTrips(cmd.Context())
				if err != nil {
					return err
				}
				trip = findTrip(trips, *c.TripID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCatchDetail(*c, trip, a.cfg.Location()))
			return nil
		},
	}
}

func (a *app) catchDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := parseID(args[0])
			if !ok {
				return fmt.Errorf("invalid catch id %q", args[0])
			}
			_, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteCatch(cmd.Context(), id); err != nil {
				return fmt.Errorf("catch #%d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catch #%d deleted\n", id)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export csv|pdf|geojson",
		Short:     "Export trips and catches",
		ValidArgs: []string{"csv", "pdf", "geojson"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			trips, catches, err := book.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, func(w io.Writer) error {
				switch args[0] {
				case "csv":
					return export.WriteCSV(w, trips, catches, a.cfg.Location())
				case "pdf":
					return export.WritePDF(w, trips, catches, a.cfg.Location())
				default:
					return export.WriteGeoJSON(w, catches)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", `output file ("-" for stdout)`)
	return cmd
}

func (a *app) backupCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a zip backup of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := a.open(false)
			if err != nil {
				return err
			}
			defer st.Close()

			if output == "" {
				output = filepath.Join(a.cfg.BackupDir,
					"fishing_logbook_backup_"+time.Now().UTC().Format("20060102-150405")+".zip")
				if err := os.MkdirAll(a.cfg.BackupDir, 0755); err != nil {
					return fmt.Errorf("create backup dir: %w", err)
				}
			}
			if err := backup.CreateFile(cmd.Context(), st, output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Backup written to", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive path (default: a stamped file in BACKUP_DIR)")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore ARCHIVE",
		Short: "Replace the database with the one in a backup archive",
		Long: `Replace the database with the one in a backup archive.
Stop the bot first: the restore overwrites the database file in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := backup.Restore(args[0], a.cfg.DBPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", a.cfg.DBPath, args[0])
			return nil
		},
	}
}

// writeOutput runs write against stdout for "-" or against the named file.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
