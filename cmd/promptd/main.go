// Package main is the promptd entrypoint. It dispatches subcommands: serve
// starts the prompt server, check validates a recipe directory without
// serving.
// file: cmd/promptd/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/dkoosis/promptd/internal/config"
	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/server"
	"github.com/dkoosis/promptd/internal/store"
)

// Version information - set during build via ldflags.
var (
	Version = "0.1.0-dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		configPath := serveCmd.String("config", "", "Path to configuration file.")
		transportType := serveCmd.String("transport", "", "Transport type (stdio or tcp); overrides config.")
		recipesDir := serveCmd.String("recipes", "", "Recipe directory; overrides config.")
		debug := serveCmd.Bool("debug", false, "Enable debug logging.")
		if err := serveCmd.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Failed to parse serve command flags: %+v", err)
		}
		if err := runServe(*configPath, *transportType, *recipesDir, *debug); err != nil {
			logger := logging.GetLogger("main")
			logger.Error("Server failed.", "error", fmt.Sprintf("%+v", err))
			os.Exit(1)
		}

	case "check":
		checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
		dir := checkCmd.String("dir", "", "Recipe directory to validate.")
		if err := checkCmd.Parse(os.Args[2:]); err != nil {
			log.Fatalf("Failed to parse check command flags: %+v", err)
		}
		if err := runCheck(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "check failed: %+v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Println("promptd", Version)

	default:
		printUsage()
		os.Exit(1)
	}
}

// printUsage prints usage information for the command.
func printUsage() {
	log.Println("Usage:")
	log.Println("  promptd serve [options]   - Start the prompt server")
	log.Println("  promptd check [options]   - Validate a recipe directory without serving")
	log.Println("  promptd version           - Print the version")
	log.Println("\nRun 'promptd <command> -h' for help on a specific command.")
}

// getDefaultConfigPath returns the default path for the configuration file.
func getDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory: %v. Using relative fallback config path.", err)
		return "configs/promptd.yaml"
	}
	return filepath.Join(homeDir, ".config", "promptd", "promptd.yaml")
}

// loadConfig loads configuration from an explicit path, the default path if
// it exists, or built-in defaults otherwise.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	defaultPath := getDefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		return config.LoadFromFile(defaultPath)
	}
	return config.DefaultConfig(), nil
}

// runServe starts the prompt server and blocks until SIGINT/SIGTERM.
func runServe(configPath, transportType, recipesDir string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if transportType != "" {
		cfg.Server.Transport = transportType
	}
	if recipesDir != "" {
		cfg.Recipes.Dir = recipesDir
	}

	level := cfg.Server.LogLevel
	if debug {
		level = "debug"
	}
	logging.SetupDefaultLogger(level)
	logger := logging.GetLogger("main")

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// runCheck scans a recipe directory and reports what would be published.
func runCheck(dir string) error {
	if dir == "" {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		dir = cfg.Recipes.Dir
	}

	logging.SetupDefaultLogger("warn")
	families, err := store.ScanDir(dir, logging.GetLogger("check"))
	if err != nil {
		return err
	}

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%d template(s) in %s\n", len(names), dir)
	for _, name := range names {
		for _, tmpl := range families[name] {
			fmt.Printf("  %s v%d  (%s, %d parameter(s))\n",
				tmpl.Name, tmpl.Version, filepath.Base(tmpl.Source), len(tmpl.Parameters))
		}
	}
	return nil
}
