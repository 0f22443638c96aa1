// linkmind-probe is the client-side daemon users run on their own machine
// to perform scrapes the coordinator cannot reach directly: tweets through a
// local Twitter CLI, and web pages fetched over plain HTTP from the user's
// own network (no browser session is used).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/linkmind-dev/linkmind/internal/probeagent"
	"github.com/linkmind-dev/linkmind/internal/version"
)

// Exit codes per the CLI contract: 0 success, 1 error, 2 invalid arguments.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	app := kingpin.New("linkmind-probe", "User-owned probe agent for linkmind link scraping.")
	app.Version(version.Full())

	loginCmd := app.Command("login", "Enroll this machine via the device-code flow.")
	apiBase := loginCmd.Flag("api-base", "Coordinator base URL.").Required().String()

	runCmd := app.Command("run", "Start the probe daemon.")
	foreground := runCmd.Flag("foreground", "Run in the foreground instead of detaching.").Bool()
	twitterCmd := runCmd.Flag("twitter-command", "External CLI invoked for Twitter fetches (space-separated).").String()

	statusCmd := app.Command("status", "Report whether the daemon is running.")
	stopCmd := app.Command("stop", "Stop the running daemon.")
	logoutCmd := app.Command("logout", "Clear the stored access token.")

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	stateDir, err := probeagent.StateDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}

	switch cmd {
	case loginCmd.FullCommand():
		os.Exit(runLogin(stateDir, *apiBase))
	case runCmd.FullCommand():
		os.Exit(runDaemon(stateDir, *foreground, *twitterCmd))
	case statusCmd.FullCommand():
		os.Exit(runStatus(stateDir))
	case stopCmd.FullCommand():
		os.Exit(runStop(stateDir))
	case logoutCmd.FullCommand():
		os.Exit(runLogout(stateDir))
	default:
		os.Exit(exitUsage)
	}
}

// runLogin drives the device-code flow to completion: initiate, display
// the user code and verification URI, then poll until authorized.
func runLogin(stateDir, apiBase string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	client := probeagent.NewClient(apiBase, "")
	resp, err := client.InitiateDeviceAuth(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	fmt.Printf("To authorize this probe, visit:\n\n  %s?code=%s\n\nCode: %s\n",
		resp.VerificationURI, resp.UserCode, resp.UserCode)

	interval := time.Duration(resp.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "login timed out")
			return exitError
		case <-ticker.C:
			poll, err := client.PollDeviceToken(ctx, resp.DeviceCode)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitError
			}
			switch poll.Error {
			case "":
				cfg := &probeagent.Config{APIBase: apiBase, AccessToken: poll.AccessToken, UserID: poll.UserID}
				if err := probeagent.SaveConfig(stateDir, cfg); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return exitError
				}
				fmt.Println("Login successful.")
				return exitOK
			case "authorization_pending":
				continue
			default:
				fmt.Fprintln(os.Stderr, "login failed:", poll.Error)
				return exitError
			}
		}
	}
}

func runDaemon(stateDir string, foreground bool, twitterCommand string) int {
	if !foreground {
		if err := probeagent.Daemonize(stateDir, probeagent.LogPath(stateDir)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
		fmt.Println("probe daemon started")
		return exitOK
	}

	cfg, err := probeagent.LoadConfig(stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	client := probeagent.NewClient(cfg.APIBase, cfg.AccessToken)
	fetcher := probeagent.NewFetcher(splitCommand(twitterCommand))
	agent := probeagent.NewAgent(client, fetcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("probe agent starting", "api_base", cfg.APIBase)
	agent.Run(ctx)
	slog.Info("probe agent stopped")
	return exitOK
}

func runStatus(stateDir string) int {
	pid, running, err := probeagent.IsRunning(stateDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if running {
		fmt.Printf("running (pid %d)\n", pid)
		return exitOK
	}
	fmt.Println("not running")
	return exitOK
}

func runStop(stateDir string) int {
	if err := probeagent.Stop(stateDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	fmt.Println("stop signal sent")
	return exitOK
}

func runLogout(stateDir string) int {
	cfg, err := probeagent.LoadConfig(stateDir)
	if err != nil {
		if err == probeagent.ErrNotLoggedIn {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	cfg.AccessToken = ""
	cfg.UserID = 0
	if err := probeagent.SaveConfig(stateDir, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	fmt.Println("logged out")
	return exitOK
}

func splitCommand(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	var cur []byte
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, s[i])
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}
