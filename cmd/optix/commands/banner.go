package commands

import (
	"fmt"

	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/sym"
	"github.com/teranos/OPTIX/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, dbPath string) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	magenta := "\033[35m"
	white := "\033[37m"
	bgBlack := "\033[40m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║       %s%s%s ██████  ██████  ████████ ██ ██   ██%s        ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║       %s%s%s██    ██ ██   ██    ██    ██  ██ ██ %s        ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║       %s%s%s██    ██ ██████     ██    ██   ███  %s        ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║       %s%s%s██    ██ ██         ██    ██  ██ ██ %s        ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║       %s%s%s ██████  ██         ██    ██ ██   ██%s        ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║   %s%s%s Pulse  %s%s%s Repos  %s%s%s Graph  %s%s%s Mine  %s%s%s Index      ║\n",
		magenta, sym.Pulse, reset+cyan+bold,
		blue, sym.Repo, reset+cyan+bold,
		green, sym.Graph, reset+cyan+bold,
		yellow, sym.Hist, reset+cyan+bold,
		white, sym.IX, reset+cyan+bold)
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ OPTIX Info ────────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	if dbPath != "" {
		fmt.Printf("%s│%s Database:  %s\n", green, reset, dbPath)
	}
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ Job updates stream live over /ws as workers run%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
