package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"trading-venue/src/codec"
	"trading-venue/src/config"
	"trading-venue/src/engine"
	"trading-venue/src/handlers"
	"trading-venue/src/logger"
	"trading-venue/src/replay"
	"trading-venue/src/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Logging)
	defer logger.CloseLogger()

	app := &cli.App{
		Name:  "venue",
		Usage: "price-time priority trading venue with volume aggregation reports",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP order entry and reporting API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "order messages to load before serving"},
					&cli.BoolFlag{Name: "header", Value: true, Usage: "the order file starts with a header line"},
				},
				Action: func(c *cli.Context) error {
					return serve(c, cfg)
				},
			},
			{
				Name:  "replay",
				Usage: "load an order file and write every aggregation report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "order messages, one per line"},
					&cli.BoolFlag{Name: "header", Value: true, Usage: "the order file starts with a header line"},
					&cli.StringFlag{Name: "out", Value: cfg.Reports.Dir, Usage: "report directory"},
				},
				Action: replayFile,
			},
			{
				Name:  "aggregate",
				Usage: "load an order file and print one aggregation report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "order messages, one per line"},
					&cli.BoolFlag{Name: "header", Value: true, Usage: "the order file starts with a header line"},
					&cli.StringFlag{Name: "by", Value: string(engine.AttributeInstrument), Usage: "BBGCode, Portfolio, Strategy or User"},
					&cli.StringFlag{Name: "side", Value: string(engine.SideBid), Usage: "B or S"},
				},
				Action: aggregate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("Command failed")
		logger.CloseLogger()
		os.Exit(1)
	}
}

func replayFile(c *cli.Context) error {
	venue := engine.NewVenue()

	summary, err := replay.LoadFile(venue, c.String("file"), c.Bool("header"))
	if err != nil && summary.Accepted == 0 {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Msg("Some order messages were not applied")
	}

	paths, err := replay.WriteReports(venue, c.String("out"))
	if err != nil {
		return err
	}

	log.Info().
		Strs("reports", paths).
		Msg("Aggregation reports generated")
	return nil
}

func aggregate(c *cli.Context) error {
	attr, err := engine.ParseAttribute(c.String("by"))
	if err != nil {
		return err
	}
	side, ok := engine.ParseSide(c.String("side"))
	if !ok {
		return fmt.Errorf("invalid side %q: must be B or S", c.String("side"))
	}

	venue := engine.NewVenue()
	if _, err := replay.LoadFile(venue, c.String("file"), c.Bool("header")); err != nil {
		log.Warn().Err(err).Msg("Some order messages were not applied")
	}

	_, err = fmt.Fprint(c.App.Writer, codec.RenderReport(attr, venue.AggregateBy(attr, side)))
	return err
}

func serve(c *cli.Context, cfg *config.Config) error {
	log.Info().Str("config", cfg.String()).Msg("Initializing trading venue")

	venue := engine.NewVenue()
	if file := c.String("file"); file != "" {
		if _, err := replay.LoadFile(venue, file, c.Bool("header")); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Some order messages were not applied")
		}
	}

	orderHandler := handlers.NewOrderHandler(venue, cfg)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, orderHandler, cfg)

	port := ":" + cfg.Server.Port
	serverError := make(chan error, 1)

	go func() {
		if err := app.Listen(port); err != nil {
			serverError <- err
		}
	}()

	log.Info().
		Str("port", port).
		Strs("endpoints", []string{
			"POST   /api/v1/orders",
			"POST   /api/v1/messages",
			"GET    /api/v1/orders/:instrument/:side/:id",
			"DELETE /api/v1/orders/:instrument/:side/:id",
			"GET    /api/v1/orderbook/:instrument",
			"GET    /api/v1/aggregations/:by?side=B|S",
			"GET    /health",
			"GET    /metrics",
		}).
		Msg("Trading venue started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverError:
		return fmt.Errorf("server failed on %s: %w", port, err)
	case <-quit:
		log.Info().Msg("Received shutdown signal, shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		// edge case: timeout during shutdown is acceptable
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().
				Dur("timeout", cfg.Server.ShutdownTimeout).
				Msg("Timeout exceeded, shutting down...")
			return nil
		}
		return err
	}

	log.Info().Msg("Shutdown complete")
	return nil
}
