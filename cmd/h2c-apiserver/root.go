package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/h2c-io/h2c-api/pkg/apiserver"
	"github.com/h2c-io/h2c-api/pkg/version"
)

// rootCmd follows the teacher's rootCmd/viper.BindPFlags shape
// (cmd/root.go in the retrieved pack) even though the façade itself is
// configured entirely from the environment (spec.md §6) — the cobra
// wrapper exists for consistent --version/-h ergonomics with the
// injection planner's CLI.
var rootCmd = &cobra.Command{
	Use:   "h2c-apiserver",
	Short: "Façade Kubernetes API server backed by a compose topology",
	Long: `
h2c-apiserver serves a subset of the Kubernetes HTTP API by projecting a
docker-compose topology as if it were a live cluster, so that off-the-shelf
Kubernetes client libraries succeed when pointed at it.

Configuration is read entirely from the environment:

  H2C_COMPOSE  path to the compose file (default /data/compose.yml)
  H2C_DATA_DIR directory holding configmaps/ and secrets/ (default /data)
  H2C_PORT     port to bind (default 6443)
  H2C_SA_DIR   directory probed for tls.crt/tls.key (default
               /var/run/secrets/kubernetes.io/serviceaccount)
`,
	Run: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("version") {
			fmt.Println(version.Version)
			return
		}
		initLogging()
		run()
	},
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and quit")
	rootCmd.Flags().IntP("log-level", "", 2, "Set the log level (0-9)")
	_ = viper.BindPFlags(rootCmd.Flags())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

func initLogging() {
	logLevel := viper.GetInt("log-level")
	if logLevel < 0 {
		logLevel = 2
	}
	config := textlogger.NewConfig(
		textlogger.Output(os.Stderr),
		textlogger.Verbosity(logLevel),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(config))

	flagSet := flag.NewFlagSet("h2c-apiserver", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing log level: %v\n", err)
	}
	klog.V(0).Infof("Logging initialized with level %d", logLevel)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run() {
	cfg := apiserver.Config{
		ComposePath: envOr("H2C_COMPOSE", "/data/compose.yml"),
		DataDir:     envOr("H2C_DATA_DIR", "/data"),
		Port:        envOr("H2C_PORT", "6443"),
		SADir:       envOr("H2C_SA_DIR", "/var/run/secrets/kubernetes.io/serviceaccount"),
	}

	srv, err := apiserver.NewServer(cfg)
	if err != nil {
		klog.Errorf("h2c-apiserver: failed to start: %v", err)
		os.Exit(1)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		klog.V(0).Infof("h2c-apiserver: received signal %v, shutting down", sig)
		cancel()
	}()

	if err := srv.Serve(ctx); err != nil {
		klog.Errorf("h2c-apiserver: server error: %v", err)
		os.Exit(1)
	}
}
