package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/EgorLis/wslogon/internal/config"
	"github.com/EgorLis/wslogon/internal/observability"
	"github.com/EgorLis/wslogon/internal/session"
	"github.com/EgorLis/wslogon/internal/wire"
)

const shutdownTimeout = 5 * time.Second

type runOptions struct {
	configPath  string
	template    uint32
	metricsAddr string
	noColor     bool
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log on and relay stdin lines as application messages",
		Long: `Connect to the configured gateway and log on. Each line read from
stdin is sent as one application message with the given template; lines
typed before the logon is accepted are queued and sent afterwards.
Inbound messages are printed as they arrive. Ctrl+C logs out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to TOML config (environment only when empty)")
	cmd.Flags().Uint32VarP(&opts.template, "template", "t", 100, "Template id for messages read from stdin")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics", "", "Serve /metrics and /healthz on this address")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runSession(cmd *cobra.Command, opts runOptions) error {
	tmpl := wire.Template(opts.template)
	if (&wire.Message{Template: tmpl}).IsControl() || tmpl == 0 {
		return fmt.Errorf("template %d is reserved", opts.template)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	logger := observability.InitLogger("wslogon", cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := cfg.SessionConfig()
	sc.Logger = &logger
	s, err := session.New(sc)
	if err != nil {
		return err
	}
	s.Subscribe(newPrinter(cmd.OutOrStdout(), opts.noColor))

	if cfg.MetricsAddr != "" {
		srv := serveAdmin(cfg.MetricsAddr, s, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info().Str("endpoint", cfg.Endpoint).Str("user", cfg.Credentials.User).Msg("running, press Ctrl+C to stop")

	go func() {
		err := sendLines(cmd.InOrStdin(), func(line string) error {
			return s.SendText(tmpl, line)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("stdin relay stopped")
		}
	}()

	<-ctx.Done()
	_ = s.Close()
	select {
	case <-s.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("logout did not finish in time")
	}
	return nil
}

// sendLines отправляет каждую непустую строку из r. Закрытая сессия
// завершает цикл, остальные ошибки печатаются и пропускаются.
func sendLines(r io.Reader, send func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := send(line); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return err
			}
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
		}
	}
	return sc.Err()
}
