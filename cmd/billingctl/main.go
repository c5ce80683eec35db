// billingctl 订阅计费的运维与调试工具
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/chatpay_server/config"
	"github.com/qs3c/chatpay_server/internal/app"
	"github.com/qs3c/chatpay_server/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Inspect and exercise chat subscription billing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "config file path")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newSignCmd(c),
		newTokenCmd(c),
		newShowCmd(c),
		newWatchCmd(c),
	)
	return root
}

func (c *cli) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// container 日志写到 stderr，stdout 只输出命令结果
func (c *cli) container(stderr io.Writer) (*app.Container, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(config.LogConfig{Level: c.logLevel, Format: logger.FormatText}, stderr)
	return app.NewContainer(cfg, log), nil
}

func closeContainer(container *app.Container, log *slog.Logger) {
	if err := container.Close(context.Background()); err != nil {
		log.Warn("failed to close clients", "error", err)
	}
}
