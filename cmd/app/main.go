package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/waypoint/internal"
	pkgconfig "github.com/starford/waypoint/pkg/config"
)

var version = "dev"

// loadConfig reads the config file. Client commands may run without one.
func loadConfig(cmd *cli.Command, required bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.LoadOptional[internal.Config]
	if required {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if u := cmd.String("server"); u != "" {
		cfg.Client.BaseURL = u
	}
	if tok := cmd.String("token"); tok != "" {
		cfg.Client.Token = tok
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.ServeMCP(version, internal.WithConfig(cfg))
}

func trips(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.ListTrips(ctx, internal.WithConfig(cfg))
}

func search(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: search <query>")
	}
	return internal.Search(ctx, query, internal.WithConfig(cfg))
}

func importOutline(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: import [--id ID] <outline.md>")
	}
	return internal.Import(ctx, path, cmd.String("id"), internal.WithConfig(cfg))
}

func show(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.Show(ctx, cmd.String("trip"), internal.WithConfig(cfg))
}

func move(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	return internal.Move(ctx, internal.MoveRequest{
		TripID:  cmd.String("trip"),
		ItemID:  cmd.String("item"),
		ToDay:   int(cmd.Int("day")),
		ToIndex: int(cmd.Int("index")),
	}, internal.WithConfig(cfg))
}

func watch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return internal.Watch(ctx, cmd.String("trip"), internal.WithConfig(cfg))
}

func tripFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "trip",
		Aliases:  []string{"t"},
		Usage:    "Trip id",
		Required: true,
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "waypoint",
		Usage:   "Collaborative day-by-day trip itineraries with a REST API, live room updates and an MCP server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "API base URL for client commands (overrides client.base_url)",
				Sources: cli.EnvVars("WAYPOINT_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for client commands (overrides client.token)",
				Sources: cli.EnvVars("WAYPOINT_TOKEN"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, notification hub and file watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve itinerary tools over MCP on stdio",
				Action: serveMCP,
			},
			{
				Name:   "trips",
				Usage:  "List trips",
				Action: trips,
			},
			{
				Name:      "search",
				Usage:     "Search trips and places",
				ArgsUsage: "<query>",
				Action:    search,
			},
			{
				Name:      "import",
				Usage:     "Create a trip from a Markdown outline",
				ArgsUsage: "<outline.md>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Trip id (assigned by the server when empty)"},
				},
				Action: importOutline,
			},
			{
				Name:   "show",
				Usage:  "Print a trip itinerary",
				Flags:  []cli.Flag{tripFlag()},
				Action: show,
			},
			{
				Name:  "move",
				Usage: "Drag an item onto a day, or onto the item at --index of that day",
				Flags: []cli.Flag{
					tripFlag(),
					&cli.StringFlag{Name: "item", Usage: "Item id", Required: true},
					&cli.IntFlag{Name: "day", Usage: "Target day number", Required: true},
					&cli.IntFlag{Name: "index", Usage: "Target position (-1 drops on the day itself)", Value: -1},
				},
				Action: move,
			},
			{
				Name:   "watch",
				Usage:  "Print a trip and reprint it on every remote change",
				Flags:  []cli.Flag{tripFlag()},
				Action: watch,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
