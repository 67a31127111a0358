package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrismart/assistant/internal/agent"
	"github.com/agrismart/assistant/internal/api"
	"github.com/agrismart/assistant/internal/buildinfo"
	"github.com/agrismart/assistant/internal/llm"
	"github.com/agrismart/assistant/internal/tools"
)

// shutdownTimeout bounds draining in-flight requests on SIGINT/SIGTERM.
const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runServe(ctx context.Context, stdout io.Writer, opts *globalOptions) error {
	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stdout, cfg)
	logger.Info("starting AgriSmart", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)
	if cfgPath == "" {
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", "path", cfgPath, "port", cfg.Listen.Port)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		a.close(closeCtx, logger)
	}()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, a.assistant, a.catalog, logger)
	server.SetAllowedOrigins(cfg.Listen.AllowedOrigins)
	if a.audit != nil {
		server.SetAuditReader(a.audit)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("AgriSmart stopped")
	return nil
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question",
		Long: "Ask a single question and print the answer. Logs go to stderr so the\n" +
			"answer can be piped. With --image and no question, the image is analyzed\n" +
			"for farming advice.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && imagePath == "" {
				return errors.New("usage: agrismart ask <question> [--image file]")
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, strings.Join(args, " "), imagePath)
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Attach an image (JPEG, PNG, WebP)")
	return cmd
}

func runAsk(ctx context.Context, stdout, stderr io.Writer, opts *globalOptions, question, imagePath string) error {
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger := configLogger(stderr, cfg)

	in := agent.TurnInput{Text: question}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		in.Image = &llm.Image{MIMEType: http.DetectContentType(data), Data: data}
	}

	a, err := buildApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.close(context.Background(), logger)

	reply, err := a.assistant.SubmitTurn(ctx, "cli", in)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if opts.output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}

	fmt.Fprintln(stdout, reply.Text)
	if len(reply.Trace) > 0 {
		fmt.Fprintln(stdout)
		for _, r := range reply.Trace {
			status := "ok"
			if r.Failed() {
				status = r.ErrorCode
				if status == "" {
					status = "error"
				}
			}
			fmt.Fprintf(stdout, "  [round %d] %s %s\n", r.Round, r.Name, status)
		}
	}
	if reply.Tier() == agent.TierSecondary {
		fmt.Fprintf(stdout, "\n(answered by the secondary model: %s)\n", reply.Outcome.Reason)
	}
	return nil
}

func newItemsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List the equipment catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runItems(cmd.OutOrStdout(), opts)
		},
	}
}

func runItems(w io.Writer, opts *globalOptions) error {
	cfg, _, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	items := tools.Summarize(catalog.Items())

	if opts.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tRENTAL\tPRICE")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Category, it.RentalRate, it.PurchasePrice)
	}
	return tw.Flush()
}

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd.OutOrStdout(), opts.output)
		},
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}
