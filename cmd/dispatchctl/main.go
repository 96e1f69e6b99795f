package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dispatch "github.com/glimte/mmate-dispatch"
	"github.com/glimte/mmate-dispatch/adapters/cloudevent"
	"github.com/glimte/mmate-dispatch/config"
	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/health"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Inspect and exercise the mmate message dispatcher",
		Long: `dispatchctl runs the mmate dispatcher over a demo ordering domain.
It lists dispatch routes, explains how a message would be processed and
dispatches messages given as CloudEvents.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	var (
		configPath string
		verbose    bool
	)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	open := func() (*dispatch.Client, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		return newDemoClient(cfg, cfg.NewLogger(os.Stderr))
	}

	// Routes command
	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "List how every registered message is dispatched",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := open()
			if err != nil {
				return err
			}
			defer client.Close()

			printRoutes(cmd.OutOrStdout(), client.Routes())
			return nil
		},
	}

	// Plan command
	planCmd := &cobra.Command{
		Use:   "plan <message-name>",
		Short: "Explain how a message would be dispatched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := open()
			if err != nil {
				return err
			}
			defer client.Close()

			t, err := client.Resolver().Registry().Get(args[0])
			if err != nil {
				return err
			}
			plan, err := client.Processor().PlanFor(t, args[0])
			printPlan(cmd.OutOrStdout(), plan)
			return err
		},
	}

	// Validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every registered message resolves to a valid route",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := open()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Validate(); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), statusErrorStyle.Render("✗ invalid routes"))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusHealthyStyle.Render(fmt.Sprintf("✓ %d routes valid", len(client.Routes()))))
			return nil
		},
	}

	// Send command
	var (
		eventFile string
		output    string
		source    string
	)
	sendCmd := &cobra.Command{
		Use:   "send [message-name data-json]...",
		Short: "Dispatch messages and print their results",
		Long: `Dispatch one or more messages in order. Each message is given as a name and
its JSON data, or as a CloudEvent JSON document with --event.

  dispatchctl send orders.place '{"orderId":"o-1","amount":10}' orders.get '{"orderId":"o-1"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args)%2 != 0 {
				return fmt.Errorf("expected message name and data pairs, got %d arguments", len(args))
			}

			events, err := collectEvents(args, eventFile, source)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("no messages to send")
			}

			client, err := open()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := signalContext()
			defer cancel()

			for _, e := range events {
				msg, err := cloudevent.FromEvent(e, client.Resolver().Registry())
				if err != nil {
					return err
				}
				result, err := client.Process(ctx, msg, cloudevent.ContextOptions(e)...)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Type(), err)
				}
				if err := printResult(cmd.OutOrStdout(), e.Type(), result, output); err != nil {
					return err
				}
			}
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&eventFile, "event", "e", "", "Path to a CloudEvent JSON document")
	sendCmd.Flags().StringVarP(&output, "output", "o", "json", "Result format: json or yaml")
	sendCmd.Flags().StringVar(&source, "source", "dispatchctl", "CloudEvent source for messages given inline")

	// Serve command
	var addr string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health checks and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := open()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := signalContext()
			defer cancel()

			mux := http.NewServeMux()
			mux.Handle("/health", health.NewHandler(client.Health(), 5*time.Second))
			mux.Handle("/health/live", health.LivenessHandler())
			if m := client.Metrics(); m != nil {
				mux.Handle("/metrics", m.Handler())
			}

			server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s... Press Ctrl+C to stop\n", addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	serveCmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Listen address")

	rootCmd.AddCommand(routesCmd, planCmd, validateCmd, sendCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, statusErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

// newDemoClient builds a dispatcher serving the demo ordering domain
func newDemoClient(cfg *config.Config, logger *slog.Logger) (*dispatch.Client, error) {
	types, err := demoTypes()
	if err != nil {
		return nil, err
	}

	book := newOrderBook()
	client, err := dispatch.New(cfg,
		dispatch.WithLogger(logger),
		dispatch.WithTypes(types),
		dispatch.WithHandlers(book.handlers()...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	book.client = client
	return client, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func collectEvents(args []string, eventFile, source string) ([]*cloudevents.Event, error) {
	var events []*cloudevents.Event

	if eventFile != "" {
		data, err := os.ReadFile(eventFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		e := cloudevents.NewEvent()
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		events = append(events, &e)
	}

	for i := 0; i < len(args); i += 2 {
		e := cloudevents.NewEvent()
		e.SetID(uuid.New().String())
		e.SetType(args[i])
		e.SetSource(source)
		e.SetTime(time.Now())
		if err := e.SetData(cloudevents.ApplicationJSON, json.RawMessage(args[i+1])); err != nil {
			return nil, fmt.Errorf("invalid data for %s: %w", args[i], err)
		}
		events = append(events, &e)
	}
	return events, nil
}

func printResult(w io.Writer, name string, result interface{}, format string) error {
	fmt.Fprintln(w, titleStyle.Render(name))
	if _, empty := result.(contracts.Empty); empty || result == nil {
		fmt.Fprintln(w, mutedStyle.Render("(no result)"))
		return nil
	}

	switch strings.ToLower(format) {
	case "yaml":
		out, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprint(w, string(out))
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}
