package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/yuriy-kovalchuk/ib-host-tool/internal/config"
	"github.com/yuriy-kovalchuk/ib-host-tool/internal/controller"
	"github.com/yuriy-kovalchuk/ib-host-tool/internal/dns"
	"github.com/yuriy-kovalchuk/ib-host-tool/internal/dns/infoblox"
)

var Version = "dev"

const usage = "usage: host-tool <appliance-host> {add|remove} <fqdn> <address> [comment]"

// options is the parsed command line.
type options struct {
	appliance string
	action    string
	hostname  string
	address   netip.Addr
	comment   string

	configPath string
	debug      bool
	version    bool

	// flags holds the flag set so explicitly set flags can override the config file.
	flags *pflag.FlagSet
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("host-tool", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringP("username", "u", config.DefaultUsername, "The username to perform the work as")
	fs.StringP("password", "p", config.DefaultPassword, "The password to authenticate with")
	fs.String("config", "", "Path to a YAML config file (default $"+config.EnvConfigPath+")")
	fs.String("wapi-version", config.DefaultWAPIVersion, "WAPI version to target")
	fs.String("view", "", "DNS view to search and create records in")
	fs.Bool("skip-tls-verify", false, "Disable TLS certificate verification (insecure)")
	fs.Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	fs.Int("retries", 0, "Attempts per store call on transient failures (0 or 1 disables retries)")
	fs.Bool("debug", false, "Enable verbose logging")
	fs.Bool("version", false, "Print the version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	o := &options{flags: fs}
	o.configPath, _ = fs.GetString("config")
	o.debug, _ = fs.GetBool("debug")
	o.version, _ = fs.GetBool("version")
	if o.version {
		return o, nil
	}

	pos := fs.Args()
	if len(pos) < 4 || len(pos) > 5 {
		return nil, errors.New(usage)
	}
	o.appliance, o.action, o.hostname = pos[0], pos[1], pos[2]
	if o.action != "add" && o.action != "remove" {
		return nil, fmt.Errorf("invalid action %q: must be add or remove", o.action)
	}
	addr, err := netip.ParseAddr(pos[3])
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", pos[3], err)
	}
	o.address = addr
	if len(pos) == 5 {
		o.comment = pos[4]
	}
	return o, nil
}

// applyFlags overlays explicitly set flags onto cfg.
func (o *options) applyFlags(cfg *config.ApplianceConfig) {
	fs := o.flags
	cfg.Host = o.appliance
	if fs.Changed("username") || cfg.Username == "" {
		cfg.Username, _ = fs.GetString("username")
	}
	if fs.Changed("password") || cfg.Password == "" {
		cfg.Password, _ = fs.GetString("password")
	}
	if fs.Changed("wapi-version") || cfg.WAPIVersion == "" {
		cfg.WAPIVersion, _ = fs.GetString("wapi-version")
	}
	if fs.Changed("view") {
		cfg.View, _ = fs.GetString("view")
	}
	if fs.Changed("skip-tls-verify") {
		cfg.SkipTLSVerify, _ = fs.GetBool("skip-tls-verify")
	}
	if fs.Changed("timeout") {
		cfg.Timeout, _ = fs.GetDuration("timeout")
	}
	if fs.Changed("retries") {
		cfg.Retry.Steps, _ = fs.GetInt("retries")
	}
}

// loadConfig resolves defaults, the config file and flags, in increasing precedence.
func loadConfig(o *options) (*config.ApplianceConfig, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}
	o.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(debug bool) logr.Logger {
	opts := zap.Options{Development: debug}
	if !debug {
		opts.Level = zapcore.ErrorLevel
	}
	return zap.New(zap.UseFlagOptions(&opts))
}

func main() {
	os.Exit(run(signals.SetupSignalHandler(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "host-tool %s\n", Version)
		return 0
	}

	log := newLogger(o.debug)
	if err := execute(ctx, o, log, stdout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, o *options, log logr.Logger, stdout io.Writer) error {
	setupLog := log.WithName("setup")
	setupLog.V(1).Info("starting host-tool", "version", Version, "action", o.action)

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if cfg.SkipTLSVerify {
		setupLog.Info("TLS certificate verification is disabled", "host", cfg.Host)
	}
	networks, err := cfg.ManagedNetworks()
	if err != nil {
		return err
	}

	client, err := infoblox.NewClient(log.WithName("wapi"), infoblox.Settings{
		Host:          cfg.Host,
		Username:      cfg.Username,
		Password:      cfg.Password,
		WAPIVersion:   cfg.WAPIVersion,
		SkipTLSVerify: cfg.SkipTLSVerify,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("unable to create WAPI client: %w", err)
	}
	setupLog.V(1).Info("using appliance", "url", client.BaseURL(), "user", cfg.Username)

	var store dns.Store = infoblox.NewStore(client, cfg.View, log.WithName("store"))
	store = dns.NewRetryingStore(store, cfg.Retry.Backoff(), log.WithName("retry"))

	reconciler := &controller.HostReconciler{
		Store:    store,
		Log:      log.WithName("host-reconciler"),
		Networks: networks,
	}

	switch o.action {
	case "add":
		comment := o.comment
		if strings.TrimSpace(comment) == "" {
			comment = cfg.Comment
		}
		res, err := reconciler.AddOrReplaceHost(ctx, o.hostname, o.address, comment)
		if err != nil {
			return err
		}
		if len(res.Created) > 0 {
			fmt.Fprintln(stdout, "Host added")
		} else {
			fmt.Fprintln(stdout, "Host unchanged")
		}
	case "remove":
		res, err := reconciler.RemoveHost(ctx, o.hostname, o.address)
		if err != nil {
			return err
		}
		if res.Changed() {
			fmt.Fprintln(stdout, "Host removed")
		} else {
			fmt.Fprintln(stdout, "Host not found")
		}
	}
	return nil
}
