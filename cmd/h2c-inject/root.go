package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/h2c-io/h2c-api/pkg/inject"
	"github.com/h2c-io/h2c-api/pkg/version"
)

// rootCmd mirrors h2c-apiserver's cobra/viper shape so both binaries share
// the same --version/--log-level ergonomics (spec.md §8).
var rootCmd = &cobra.Command{
	Use:   "h2c-inject COMPOSE_FILE",
	Short: "Wire a docker-compose project to the h2c façade API server",
	Long: `
h2c-inject issues a self-signed CA and leaf certificate, synthesizes a fake
ServiceAccount bundle, probes the host for a usable container-runtime
socket, and rewrites every service in a compose graph to point Kubernetes
client libraries at the h2c façade instead of a real cluster.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("version") {
			fmt.Println(version.Version)
			return nil
		}
		initLogging()
		return run(args[0])
	},
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and quit")
	rootCmd.Flags().IntP("log-level", "", 0, "Set the log level (0-9)")
	rootCmd.Flags().String("expose-host-port", "", "Publish the façade port on the host (default 6443 if given with no value) and emit a client config")
	rootCmd.Flags().Lookup("expose-host-port").NoOptDefVal = "6443"
	rootCmd.Flags().StringArray("host", nil, "Extra SAN and (first occurrence) client-config server hostname; repeatable")
	_ = viper.BindPFlags(rootCmd.Flags())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging() {
	logLevel := viper.GetInt("log-level")
	if logLevel < 0 {
		logLevel = 0
	}
	config := textlogger.NewConfig(
		textlogger.Output(os.Stderr),
		textlogger.Verbosity(logLevel),
	)
	klog.SetLoggerWithOptions(textlogger.NewLogger(config))

	flagSet := flag.NewFlagSet("h2c-inject", flag.ContinueOnError)
	klog.InitFlags(flagSet)
	if err := flagSet.Parse([]string{"--v", strconv.Itoa(logLevel)}); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing log level: %v\n", err)
	}
}

func run(composePath string) error {
	opts := inject.Options{
		ComposePath:    composePath,
		ExtraSANs:      viper.GetStringSlice("host"),
		ExposeHostPort: viper.GetString("expose-host-port"),
	}

	result, err := inject.Run(context.Background(), opts)
	if err != nil {
		return fmt.Errorf("h2c-inject: %w", err)
	}

	fmt.Printf("wrote override: %s\n", result.OverridePath)
	fmt.Printf("wrote service account bundle: %s\n", result.BundleDir)
	if result.KubeconfigPath != "" {
		fmt.Printf("wrote client config: %s\n", result.KubeconfigPath)
	}
	if !result.SocketBridged {
		fmt.Println("no container-runtime socket passed the trial mount; log tail and restart are disabled")
	}
	return nil
}
