package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/micielski/filmweb-export/internal/utils"
	"github.com/micielski/filmweb-export/pkg/export"
	"github.com/micielski/filmweb-export/pkg/filmweb"
	"github.com/micielski/filmweb-export/pkg/storage"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export your rating history to CSV",
	Long: `Fetches your rated films, rated series, favorites and watchlist with a
bounded pool of concurrent workers and writes ratings.csv, favorited.csv and
watchlist.csv once everything finished. Cookie values (_fwuser_token,
_fwuser_sessionId, JWT) come from your browser's devtools.`,
	Run: func(cmd *cobra.Command, args []string) {
		creds := filmweb.Credentials{
			Username: stringOption(cmd, "username", "filmweb.username"),
			Token:    stringOption(cmd, "token", "filmweb.token"),
			Session:  stringOption(cmd, "session", "filmweb.session"),
			JWT:      stringOption(cmd, "jwt", "filmweb.jwt"),
		}
		if err := creds.Validate(); err != nil {
			utils.Log.Fatal("Missing credentials: ", err)
		}

		threads, _ := cmd.Flags().GetInt("threads")
		if !cmd.Flags().Changed("threads") {
			threads = viper.GetInt("threads")
		}
		if threads < 1 || threads > export.MaxWorkers {
			utils.Log.Fatal("threads must be between 1 and ", export.MaxWorkers,
				" (the site silently drops titles under heavier concurrency)")
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !cmd.Flags().Changed("quiet") {
			quiet = viper.GetBool("quiet")
		}
		outDir, _ := cmd.Flags().GetString("out")
		dbPath, _ := cmd.Flags().GetString("db")
		rps, _ := cmd.Flags().GetFloat64("rps")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := filmweb.NewClient(creds)

		username, err := client.VerifyCredentials(ctx)
		if err != nil {
			utils.Log.Fatal("Credential check failed: ", err)
		}
		utils.Log.Info("Logged in as ", username)

		counts, err := client.FetchUserCounts(ctx)
		if err != nil {
			utils.Log.Warn("Could not read your list totals, progress hints unavailable: ", err)
		} else {
			utils.Log.Infof("Exporting %d films, %d series, %d favorites, %d watchlist titles",
				counts.Films, counts.Serials, counts.Favorites, counts.WantsToSee)
		}

		agg := export.NewAggregator()
		scheduler := export.NewScheduler(client, agg, export.Config{
			Workers:           threads,
			RequestsPerSecond: rps,
			Quiet:             quiet,
		})

		if err := scheduler.Run(ctx); err != nil {
			// No partial files on a dead session or an interrupt.
			utils.Log.Fatal("Export failed, nothing written: ", err)
		}

		records := agg.Freeze()
		if degraded := scheduler.Degraded(); degraded > 0 {
			utils.Log.Warn(degraded, " page(s) were skipped after repeated failures; the export is incomplete")
		}
		// Lists overlap, so the deduplicated record count can legitimately be
		// smaller than the summed profile totals. Falling below the distinct
		// lower bound cannot be explained by overlap.
		if lower := counts.DistinctLowerBound(); lower > 0 && len(records) < lower {
			utils.Log.Warn("Collected ", len(records), " titles but your profile reports at least ", lower,
				"; some are missing")
		}

		exporter := &export.CsvExporter{OutDir: outDir}
		if err := exporter.Export(records); err != nil {
			utils.Log.Fatal("Writing CSV files failed: ", err)
		}
		utils.Log.Info("Wrote ", len(records), " titles to ", outDir)

		if dbPath != "" {
			db, err := storage.Open(dbPath)
			if err != nil {
				utils.Log.Fatal("Opening snapshot database failed: ", err)
			}
			defer db.Close()
			if err := db.SaveSnapshot(ctx, records); err != nil {
				utils.Log.Fatal("Saving snapshot failed: ", err)
			}
			utils.Log.Info("Snapshot saved to ", dbPath)
		}
	},
}

// stringOption resolves a flag with a viper config fallback, so credentials
// can live in ~/.filmweb-export.yaml instead of shell history.
func stringOption(cmd *cobra.Command, flag, viperKey string) string {
	v, _ := cmd.Flags().GetString(flag)
	if v == "" {
		v = viper.GetString(viperKey)
	}
	return v
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("username", "u", "", "Filmweb username")
	exportCmd.Flags().StringP("token", "t", "", "_fwuser_token cookie value")
	exportCmd.Flags().StringP("session", "s", "", "_fwuser_sessionId cookie value")
	exportCmd.Flags().StringP("jwt", "j", "", "JWT cookie value")
	exportCmd.Flags().IntP("threads", "", export.DefaultWorkers, "Number of concurrent workers (1-6)")
	exportCmd.Flags().BoolP("quiet", "q", false, "Don't print successfully exported titles")
	exportCmd.Flags().StringP("out", "o", "exports", "Output directory for the CSV files")
	exportCmd.Flags().StringP("db", "", "", "Also save the run as a sqlite snapshot at this path")
	exportCmd.Flags().Float64P("rps", "", 0, "Request rate cap, requests per second (default 4)")
}
