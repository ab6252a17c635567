// Command ssnode runs a single Storage Server node: it registers with a
// Name Server, then serves client, peer, and NS traffic until signaled to
// shut down.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/config"
	"github.com/marmos91/ssnode/pkg/node"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ssnode <ns_ip> <ns_port> <my_ip> <my_client_port> <my_repl_port>",
	Short: "Run a Storage Server node",
	Args:  cobra.ExactArgs(5),
	RunE:  runNode,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to node configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	nsPort, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid ns_port %q: %w", args[1], err)
	}
	clientPort, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("invalid my_client_port %q: %w", args[3], err)
	}
	replPort, err := strconv.Atoi(args[4])
	if err != nil {
		return fmt.Errorf("invalid my_repl_port %q: %w", args[4], err)
	}

	cfg, err := config.MustLoad(configFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := node.New(cfg, node.Identity{
		NSHost:         args[0],
		NSPort:         nsPort,
		IP:             args[2],
		ClientPort:     int32(clientPort),
		ReplListenPort: int32(replPort),
	})

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("ssnode is running, press Ctrl+C to stop")
	<-sigChan
	signal.Stop(sigChan)

	logger.Info("shutdown signal received, initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := n.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("ssnode stopped gracefully")
	return nil
}
