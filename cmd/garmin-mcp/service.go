package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/SolanceLab/garmin-mcp/pkg/app"
)

// stopGrace bounds how long a service stop waits for the server's own
// shutdown path before letting the process exit.
const stopGrace = 10 * time.Second

func serviceCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "service <action>",
		Short: "Manage garmin-mcp as a system service",
		Long: `Manage garmin-mcp as a system service running the http transport.

Actions: install, uninstall, start, stop, restart, status, run. The run
action is what the service manager invokes; the others control the
registration and lifecycle.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "status", "run"},
		RunE: func(_ *cobra.Command, args []string) error {
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			return controlService(svc, args[0])
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func newService(configPath string) (service.Service, error) {
	return service.New(&program{configPath: configPath}, serviceConfig(configPath))
}

func serviceConfig(configPath string) *service.Config {
	cfg := &service.Config{
		Name:        "garmin-mcp",
		DisplayName: "Garmin MCP server",
		Description: "Exposes Garmin Connect health data as MCP tools over HTTP.",
		Arguments:   []string{"service", "run"},
	}
	if configPath != "" {
		cfg.Arguments = append(cfg.Arguments, "--config", configPath)
	}
	return cfg
}

func controlService(svc service.Service, action string) error {
	switch action {
	case "run":
		return svc.Run()
	case "status":
		status, err := svc.Status()
		if err != nil {
			return err
		}
		fmt.Println(statusText(status))
		return nil
	default:
		return service.Control(svc, action)
	}
}

func statusText(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// program adapts the application loop to the service manager lifecycle.
type program struct {
	configPath string
	done       chan struct{}
}

// Start launches the server in the background; the service manager expects
// Start to return promptly.
func (p *program) Start(service.Service) error {
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		err := app.Run(app.RunParams{
			ConfigPath: p.configPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
			Transport:  "http",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "garmin-mcp service: %v\n", err)
		}
	}()
	return nil
}

// Stop signals the server's own shutdown path and waits for it to finish,
// within a grace period.
func (p *program) Stop(service.Service) error {
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	select {
	case <-p.done:
	case <-time.After(stopGrace):
	}
	return nil
}
