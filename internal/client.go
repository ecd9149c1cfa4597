package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/starford/waypoint/internal/collab"
	"github.com/starford/waypoint/internal/drag"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/parser"
	"github.com/starford/waypoint/internal/printer"
	"github.com/starford/waypoint/internal/reconcile"
	"github.com/starford/waypoint/internal/tripclient"
	"github.com/starford/waypoint/internal/wsclient"
)

// clientEnv is what the client commands share: an API client, a logger on
// stderr and the output writer.
type clientEnv struct {
	cfg    *Config
	api    *tripclient.Client
	logger *slog.Logger
	out    io.Writer
}

func newClientEnv(opts []Option) (*clientEnv, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	out := app.out
	if out == nil {
		out = printer.Output()
	}
	logger := newLogger(cfg, os.Stderr)
	api := tripclient.NewClient(cfg.Client.BaseURL,
		tripclient.WithToken(cfg.Client.Token),
		tripclient.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
	)
	return &clientEnv{cfg: cfg, api: api, logger: logger, out: out}, nil
}

func (e *clientEnv) session() *reconcile.Session {
	return reconcile.NewSession(e.api,
		reconcile.WithLogger(e.logger),
		reconcile.WithReorderPolicy(e.cfg.Client.ReorderFailure),
	)
}

// ListTrips prints the trips known to the server.
func ListTrips(ctx context.Context, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	list, err := env.api.ListTrips(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("list trips: %w", err)
	}
	printer.Trips(env.out, list.Trips)
	return nil
}

// Search prints trips and places matching query.
func Search(ctx context.Context, query string, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	results, err := env.api.Search(ctx, query, 50)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	printer.Results(env.out, results)
	return nil
}

// Show prints one trip.
func Show(ctx context.Context, tripID string, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	trip, err := env.session().Open(ctx, tripID)
	if err != nil {
		return err
	}
	printer.Trip(env.out, trip)
	return nil
}

// Import creates a trip from a Markdown outline file and prints it.
// tripID may be empty to let the server assign one.
func Import(ctx context.Context, path, tripID string, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read outline: %w", err)
	}
	outline, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("parse outline %s: %w", path, err)
	}
	if outline.Title == "" {
		return fmt.Errorf("outline %s has no title", path)
	}

	trip, err := env.api.CreateTrip(ctx, tripclient.CreateTrip{
		ID:        tripID,
		Title:     outline.Title,
		StartDate: outline.StartDate,
		Days:      len(outline.Days),
	})
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}
	for i, places := range outline.Days {
		for _, p := range places {
			if trip, err = env.api.AddItem(ctx, trip.ID, i+1, p); err != nil {
				return fmt.Errorf("add %q to day %d: %w", p.Name, i+1, err)
			}
		}
	}
	env.logger.Info("trip imported",
		slog.String("trip_id", trip.ID),
		slog.Int("days", len(outline.Days)),
		slog.Int("items", outline.ItemCount()))
	printer.Trip(env.out, trip)
	return nil
}

// MoveRequest describes a drag-and-drop gesture issued from the command line.
type MoveRequest struct {
	TripID string
	ItemID string
	// ToDay is the day the item is dropped on.
	ToDay int
	// ToIndex, when non-negative, drops onto the item at that position
	// instead of the day container.
	ToIndex int
}

// Move performs a single drag gesture on a trip and prints the result.
func Move(ctx context.Context, req MoveRequest, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	s := env.session()
	trip, err := s.Open(ctx, req.TripID)
	if err != nil {
		return err
	}

	src, ok := locate(trip, req.ItemID)
	if !ok {
		return fmt.Errorf("item %q not found in trip %q", req.ItemID, req.TripID)
	}
	dst := drag.Day(req.ToDay)
	if d := trip.Day(req.ToDay); d != nil && req.ToIndex >= 0 && req.ToIndex < len(d.Items) {
		dst = drag.Item(d.Items[req.ToIndex].ID, req.ToDay, req.ToIndex)
	}

	c := drag.NewController(s, env.logger)
	if err := c.Start(src); err != nil {
		return err
	}
	c.Over(&dst)
	decision, err := c.End(ctx, &dst)
	if err != nil {
		return err
	}
	s.Wait()
	if decision.Action == drag.None {
		_, _ = fmt.Fprintln(env.out, "nothing to do")
		return nil
	}
	printer.Trip(env.out, s.Snapshot())
	return nil
}

func locate(trip *models.Trip, itemID string) (drag.Context, bool) {
	for _, d := range trip.Days {
		for i, it := range d.Items {
			if it.ID == itemID {
				return drag.Item(itemID, d.Number, i), true
			}
		}
	}
	return drag.Context{}, false
}

// Watch prints a trip and reprints it whenever a collaborator changes it.
// It runs until ctx is cancelled. Without a notification channel it prints once.
func Watch(ctx context.Context, tripID string, opts ...Option) error {
	env, err := newClientEnv(opts)
	if err != nil {
		return err
	}
	s := env.session()
	s.Subscribe(func(t *models.Trip) {
		if t != nil {
			printer.Trip(env.out, t)
		}
	})
	if _, err := s.Open(ctx, tripID); err != nil {
		return err
	}
	defer s.Close()

	var ch collab.Channel
	if wsURL, err := wsclient.Endpoint(env.cfg.Client.BaseURL); err != nil {
		env.logger.Warn("collaboration disabled", slog.String("error", err.Error()))
	} else if conn, err := wsclient.Dial(ctx, wsURL, env.cfg.Client.Token, env.logger); err != nil {
		env.logger.Warn("collaboration disabled", slog.String("error", err.Error()))
	} else {
		defer conn.Close()
		ch = conn
	}

	bridge := collab.NewBridge(ch, s, env.logger)
	bridge.Mount(ctx, tripID)
	env.logger.Info("watching trip", slog.String("trip_id", tripID), slog.String("state", bridge.State().String()))

	bridge.Run(ctx)
	bridge.Unmount(context.WithoutCancel(ctx))
	if ctx.Err() != nil {
		return nil
	}
	// The channel closed; keep the printed state until the user stops us.
	<-ctx.Done()
	return nil
}
