// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hkoosha/ec2ssh/internal/adapters/aws"
	"github.com/hkoosha/ec2ssh/internal/adapters/data/file"
	"github.com/hkoosha/ec2ssh/internal/adapters/executor"
	"github.com/hkoosha/ec2ssh/internal/core/domain"
	"github.com/hkoosha/ec2ssh/internal/core/services"
	"github.com/hkoosha/ec2ssh/internal/logger"
)

const appName = "ec2ssh"

var (
	version   = "develop"
	gitCommit = "unknown"

	// Command-line flags
	configDir string
	debug     bool
	refresh   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "EC2 SSH manager: list, connect, scan and search instances",
		Version: fmt.Sprintf("%s (%s)", version, gitCommit),
	}
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Config directory path (default: ~/.config/ec2ssh)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "Bypass the instance cache and fetch from AWS")

	// Pre-parse so the logger and config paths see the flags; cobra parses
	// again during Execute.
	_ = rootCmd.PersistentFlags().Parse(os.Args[1:])

	log, err := logger.New(appName, debug)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	//nolint:errcheck // log.Sync may return an error which is safe to ignore here
	defer log.Sync()

	home, err := os.UserHomeDir()
	if err != nil {
		log.Errorw("failed to get user home directory", "error", err)
		//nolint:gocritic // exitAfterDefer: ensure immediate exit on unrecoverable error
		os.Exit(1)
	}

	configDirPath := filepath.Join(home, ".config", appName)
	if configDir != "" {
		if strings.HasPrefix(configDir, "~/") {
			configDirPath = filepath.Join(home, configDir[2:])
		} else {
			configDirPath = configDir
		}
	}
	if err := os.MkdirAll(configDirPath, 0o755); err != nil {
		log.Errorw("failed to create config directory", "path", configDirPath, "error", err)
		os.Exit(1)
	}

	configRepo := file.NewConfigManager(filepath.Join(configDirPath, "config.yaml"))
	cfg, err := configRepo.Load()
	if err != nil {
		log.Warnw("failed to load configuration, using defaults", "error", err)
	}

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cache := file.NewInstanceCache(log, filepath.Join(configDirPath, "cache.json"), cacheTTL)
	keywords := file.NewKeywordStore(log, filepath.Join(configDirPath, "keywords.json"))
	history := file.NewCommandHistory(log, filepath.Join(configDirPath, "command_history.json"))

	exec := executor.NewSystemExecutor(log)
	fetcher := aws.NewEC2Fetcher(log)

	instanceSvc := services.NewInstanceService(log, fetcher, cache)
	connSvc := services.NewConnectionService(log)
	sshSvc := services.NewSSHService(log, exec)
	scpSvc := services.NewSCPService(log, exec)
	scanSvc := services.NewScanService(log, exec, connSvc, sshSvc)

	// listInstances loads the instance set, honoring the --refresh flag.
	listInstances := func(cmd *cobra.Command) ([]domain.Instance, error) {
		return instanceSvc.ListInstances(cmd.Context(), refresh)
	}

	// findInstance resolves a CLI argument to an instance, by exact id first
	// and then by case-insensitive name.
	findInstance := func(cmd *cobra.Command, query string) (domain.Instance, error) {
		instances, err := listInstances(cmd)
		if err != nil {
			return domain.Instance{}, err
		}
		for _, inst := range instances {
			if inst.ID == query {
				return inst, nil
			}
		}
		for _, inst := range instances {
			if strings.EqualFold(inst.Name, query) {
				return inst, nil
			}
		}
		return domain.Instance{}, fmt.Errorf("no instance matching %q", query)
	}

	// resolveTarget derives host, proxy options and key for an instance.
	resolveTarget := func(inst domain.Instance) (services.SSHOptions, error) {
		profile := connSvc.ResolveProfile(inst, cfg.ConnectionRules, cfg.ConnectionProfiles)
		host := connSvc.TargetHost(inst, profile)
		if host == "" {
			return services.SSHOptions{}, fmt.Errorf("instance %s has no reachable address", inst.ID)
		}

		keyPath := sshSvc.KeyPath(cfg, inst.ID)
		if keyPath == "" && inst.KeyName != "" {
			keyPath = sshSvc.DiscoverKey(inst.KeyName)
		}

		return services.SSHOptions{
			Host:      host,
			User:      cfg.Username(),
			KeyPath:   keyPath,
			ProxyArgs: connSvc.ProxyArgs(profile),
		}, nil
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List EC2 instances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances, err := listInstances(cmd)
			if err != nil {
				return err
			}
			if age, ok := instanceSvc.CacheAge(); ok && !refresh {
				fmt.Printf("# instance data is %s old (use --refresh to refetch)\n", age.Round(time.Second))
			}
			for _, inst := range instances {
				ip := inst.PublicIP
				if ip == "" {
					ip = inst.PrivateIP
				}
				fmt.Printf("%-20s %-30s %-12s %-10s %-16s %s\n",
					inst.ID, inst.DisplayName(), inst.Type, inst.State, ip, inst.Region)
			}
			return nil
		},
	}

	connectCmd := &cobra.Command{
		Use:   "connect <instance>",
		Short: "Open an interactive SSH session to an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := findInstance(cmd, args[0])
			if err != nil {
				return err
			}
			if !inst.IsRunning() {
				return fmt.Errorf("instance %s is %s, not running", inst.ID, inst.State)
			}
			opts, err := resolveTarget(inst)
			if err != nil {
				return err
			}
			return sshSvc.Connect(sshSvc.BuildSSHCommand(opts))
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <instance> <command>",
		Short: "Run a command on an instance and print its output",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := findInstance(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := resolveTarget(inst)
			if err != nil {
				return err
			}
			remote := strings.Join(args[1:], " ")
			opts.RemoteCommand = remote

			res, err := exec.Run(cmd.Context(), sshSvc.BuildSSHCommand(opts), 60*time.Second)
			if err != nil {
				return err
			}
			if err := history.AddToHistory(inst.ID, remote); err != nil {
				log.Warnw("failed to record command history", "error", err)
			}
			fmt.Print(res.Stdout)
			if res.ExitCode != 0 {
				fmt.Fprint(os.Stderr, res.Stderr)
				return fmt.Errorf("remote command exited with code %d", res.ExitCode)
			}
			return nil
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan [instance]",
		Short: "Scan instances per the configured scan rules and store results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := listInstances(cmd)
			if err != nil {
				return err
			}

			targets := instances
			if len(args) == 1 {
				inst, err := findInstance(cmd, args[0])
				if err != nil {
					return err
				}
				targets = []domain.Instance{inst}
			}

			for _, inst := range targets {
				results := scanSvc.ScanInstance(cmd.Context(), inst, cfg)
				if len(results) == 0 {
					continue
				}
				if err := keywords.SaveResults(inst.ID, results); err != nil {
					log.Errorw("failed to save scan results", "instance", inst.ID, "error", err)
					continue
				}
				fmt.Printf("%s: %d results\n", inst.ID, len(results))
			}

			activeIDs := make([]string, 0, len(instances))
			for _, inst := range instances {
				activeIDs = append(activeIDs, inst.ID)
			}
			if pruned, err := keywords.PruneStale(activeIDs); err != nil {
				log.Warnw("failed to prune keyword store", "error", err)
			} else if pruned > 0 {
				fmt.Printf("pruned %d stale entries\n", pruned)
			}
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored scan results",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			matches := keywords.Search(args[0])
			if len(matches) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, m := range matches {
				fmt.Printf("%s  %s  (%s)\n", m.ServerID, m.Source, m.Timestamp.Format(time.RFC3339))
				for _, line := range strings.Split(m.Content, "\n") {
					fmt.Printf("    %s\n", line)
				}
			}
			return nil
		},
	}

	uploadCmd := &cobra.Command{
		Use:   "upload <instance> <local> <remote>",
		Short: "Copy a local file to an instance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := findInstance(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := resolveTarget(inst)
			if err != nil {
				return err
			}
			argv := scpSvc.BuildUploadCommand(args[1], args[2], services.TransferOptions{
				Host: opts.Host, User: opts.User, KeyPath: opts.KeyPath, ProxyArgs: opts.ProxyArgs,
			})
			res, err := scpSvc.ExecuteTransfer(cmd.Context(), argv)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("transfer failed: %s", strings.TrimSpace(res.Stderr))
			}
			fmt.Println("upload complete")
			return nil
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download <instance> <remote> <local>",
		Short: "Copy a file from an instance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := findInstance(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := resolveTarget(inst)
			if err != nil {
				return err
			}
			argv := scpSvc.BuildDownloadCommand(args[1], args[2], services.TransferOptions{
				Host: opts.Host, User: opts.User, KeyPath: opts.KeyPath, ProxyArgs: opts.ProxyArgs,
			})
			res, err := scpSvc.ExecuteTransfer(cmd.Context(), argv)
			if err != nil {
				return err
			}
			if res.ExitCode != 0 {
				return fmt.Errorf("transfer failed: %s", strings.TrimSpace(res.Stderr))
			}
			fmt.Println("download complete")
			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history [instance]",
		Short: "Show command history, globally or for one instance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var entries []string
			if len(args) == 1 {
				entries = history.InstanceHistory(args[0])
			} else {
				entries = history.GlobalHistory()
			}
			for _, entry := range entries {
				fmt.Println(entry)
			}
			return nil
		},
	}

	historySaveCmd := &cobra.Command{
		Use:   "save <name> <command>",
		Short: "Save a named command, replacing any existing one with that name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return history.SaveCommand(args[0], strings.Join(args[1:], " "))
		},
	}

	historySavedCmd := &cobra.Command{
		Use:   "saved",
		Short: "List saved commands",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, saved := range history.SavedCommands() {
				fmt.Printf("%-20s %s\n", saved.Name, saved.Command)
			}
			return nil
		},
	}

	historyDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved command",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			deleted, err := history.DeleteSavedCommand(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no saved command named %q", args[0])
			}
			return nil
		},
	}
	historyCmd.AddCommand(historySaveCmd, historySavedCmd, historyDeleteCmd)

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List SSH keys found in ~/.ssh",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, key := range sshSvc.ListAvailableKeys() {
				marker := ""
				if !sshSvc.KeyPermissionsOK(key) {
					marker = "  (permissions too open, run: ec2ssh keys fix " + key + ")"
				}
				fmt.Println(key + marker)
			}
			return nil
		},
	}

	keysFixCmd := &cobra.Command{
		Use:   "fix <key>",
		Short: "Restrict a key file to owner-only permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return sshSvc.FixKeyPermissions(args[0])
		},
	}

	keysAddCmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Add a key to the running ssh-agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !sshSvc.AgentRunning() {
				return fmt.Errorf("no ssh-agent detected (SSH_AUTH_SOCK is unset)")
			}
			return sshSvc.AddKeyToAgent(cmd.Context(), args[0])
		},
	}
	keysCmd.AddCommand(keysFixCmd, keysAddCmd)

	rootCmd.AddCommand(listCmd, connectCmd, runCmd, scanCmd, searchCmd, uploadCmd, downloadCmd, historyCmd, keysCmd)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
