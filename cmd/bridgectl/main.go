// bridgectl runs one-shot provisioning operations against the remote
// license service using the same configuration as the server. It is
// the operator's tool for testing connectivity, driving individual
// lifecycle operations, and sealing API key files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/licensing"
	"licensebridge/internal/security"
	"licensebridge/internal/services"
)

const usage = `usage: bridgectl <command> [flags]

commands:
  test            probe remote API connectivity
  create          provision a license for a subscription
  suspend         deactivate a subscription's license
  unsuspend       reactivate a subscription's license
  terminate       delete a subscription's license
  renew           renew (or recreate) a subscription's license
  change-package  reapply package limits to a license
  key             print the license key for a subscription
  derive          print the locally derived key without remote calls
  seal-key        encrypt an API key into a sealed key file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	subscription := fs.String("subscription", "", "billing subscription id")
	username := fs.String("username", "", "subscriber username")
	options := fs.String("options", "", "comma-separated option overrides (id=value,...)")
	keyFile := fs.String("out", "api_key.sealed", "output path for seal-key")
	fs.Parse(os.Args[2:])

	if command == "derive" {
		requireAccount(*subscription, *username)
		fmt.Println(licensing.DeriveKey(*subscription + "-" + *username))
		return
	}

	if command == "seal-key" {
		sealKey(*keyFile)
		return
	}

	svc, logger := buildService()
	ctx := infrastructure.EnsureTraceID(context.Background())

	req := services.AccountRequest{
		SubscriptionID: *subscription,
		Username:       *username,
		ConfigOptions:  parseOptions(*options),
	}

	switch command {
	case "test":
		res := svc.TestConnection(ctx)
		printJSON(res)
		if !res.Success {
			os.Exit(1)
		}
	case "create":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.CreateAccount(ctx, req) })
	case "suspend":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.SuspendAccount(ctx, req) })
	case "unsuspend":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.UnsuspendAccount(ctx, req) })
	case "terminate":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.TerminateAccount(ctx, req) })
	case "renew":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.RenewAccount(ctx, req) })
	case "change-package":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.ChangePackage(ctx, req) })
	case "key":
		requireAccount(*subscription, *username)
		run(logger, func() (interface{}, error) { return svc.LicenseKey(ctx, req) })
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func buildService() (services.ProvisioningService, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fail("failed to load configuration", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fail("failed to initialize logger", err)
	}

	baseURL, err := cfg.Remote.BaseURL()
	if err != nil {
		fail("invalid hostname", err)
	}
	teamID, err := cfg.Remote.NormalizedTeamID()
	if err != nil {
		fail("invalid team id", err)
	}
	apiKey, err := security.ResolveAPIKey(cfg.Remote.APIKey, cfg.Remote.APIKeyFile, cfg.Remote.APIKeyPassphrase)
	if err != nil {
		fail("failed to resolve api key", err)
	}
	if apiKey == "" {
		fail("no api key configured", config.ErrAPIKeyMissing)
	}

	client := licensing.NewClient(licensing.ClientConfig{
		BaseURL:        baseURL,
		TeamID:         teamID,
		APIKey:         apiKey,
		Timeout:        cfg.Remote.Timeout,
		CreateStatus:   cfg.Remote.CreateStatus,
		RecreateStatus: cfg.Remote.RecreateStatus,
		UserAgent:      cfg.Remote.UserAgent,
	}, logger, nil)

	reconciler := licensing.NewReconciler(client, logger, nil, cfg.Provisioning.ServicePrefix)
	return services.NewProvisioningService(reconciler, logger, cfg.Provisioning.Options), logger
}

func sealKey(path string) {
	apiKey := os.Getenv("BRIDGE_SEAL_API_KEY")
	passphrase := os.Getenv("BRIDGE_SEAL_PASSPHRASE")
	if apiKey == "" || passphrase == "" {
		fmt.Fprintln(os.Stderr, "seal-key requires BRIDGE_SEAL_API_KEY and BRIDGE_SEAL_PASSPHRASE")
		os.Exit(2)
	}
	if err := security.WriteSealedKey(path, apiKey, passphrase); err != nil {
		fail("failed to write sealed key", err)
	}
	fmt.Printf("sealed key written to %s\n", path)
}

// parseOptions turns "limit=10,scope=global" into config options.
func parseOptions(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	opts := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			fmt.Fprintf(os.Stderr, "invalid option %q, want id=value\n", pair)
			os.Exit(2)
		}
		opts[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return opts
}

func requireAccount(subscription, username string) {
	if subscription == "" || username == "" {
		fmt.Fprintln(os.Stderr, "both -subscription and -username are required")
		os.Exit(2)
	}
}

func run(logger *slog.Logger, op func() (interface{}, error)) {
	res, err := op()
	if err != nil {
		logger.Error("operation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	printJSON(res)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail("failed to encode output", err)
	}
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
