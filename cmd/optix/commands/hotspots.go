package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/history"
	"github.com/teranos/OPTIX/sym"
)

// HotspotsCmd shows churn hotspots for a mined repository
var HotspotsCmd = &cobra.Command{
	Use:   "hotspots <repo-url>",
	Short: sym.Hist + " Show churn hotspots for a mined repository",
	Long: sym.Hist + ` Hotspots - files with sustained heavy churn.

A file is a hotspot when its average weekly churn rate inside the
window clears the threshold. Run 'optix mine' first; hotspots read the
weekly aggregates mining produced.

Examples:
  optix hotspots https://github.com/acme/gadget
  optix hotspots https://github.com/acme/gadget --weeks 26 --threshold 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weeks, _ := cmd.Flags().GetInt("weeks")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		return runHotspots(cliUserID(cmd), args[0], weeks, threshold)
	},
}

func init() {
	HotspotsCmd.Flags().Int("weeks", 0, "Churn window in weeks (0 = configured default)")
	HotspotsCmd.Flags().Float64("threshold", 0, "Minimum average churn rate (0 = configured default)")
}

func runHotspots(userID int64, repoURL string, weeks int, threshold float64) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if weeks <= 0 {
		weeks = cfg.Hotspots.WindowWeeks
	}
	if threshold <= 0 {
		threshold = cfg.Hotspots.Threshold
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := history.NewStore(database)
	hotspots, err := store.Hotspots(context.Background(), userID, repoURL, weeks, threshold)
	if err != nil {
		return errors.Wrap(err, "failed to query hotspots")
	}

	if len(hotspots) == 0 {
		fmt.Printf("%s No hotspots above threshold %.1f in the last %d week(s)\n", sym.Hist, threshold, weeks)
		pterm.Info.Printf("Mine the repository first if you haven't: optix mine %s\n", repoURL)
		return nil
	}

	fmt.Printf("%s Hotspots for %s (last %d weeks, threshold %.1f)\n\n", sym.Hist, repoURL, weeks, threshold)

	// Print table header
	fmt.Printf("%-50s %-12s %-9s %-9s %s\n", "FILE", "AVG CHURN", "COMMITS", "ADDED", "DELETED")
	fmt.Printf("%-50s %-12s %-9s %-9s %s\n", "----", "---------", "-------", "-----", "-------")

	for _, h := range hotspots {
		fmt.Printf("%-50s %-12.2f %-9d %-9d %d\n",
			truncate(h.FilePath, 50),
			h.AvgChurnRate,
			h.TotalCommits,
			h.TotalAdded,
			h.TotalDeleted)
	}

	fmt.Printf("\nTotal: %d hotspot(s)\n", len(hotspots))
	return nil
}
