package commands

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/stoppls/internal/ai"
	"github.com/nhle/stoppls/internal/credential"
	"github.com/nhle/stoppls/internal/model"
	"github.com/nhle/stoppls/internal/monitor"
	"github.com/nhle/stoppls/internal/provider"
	"github.com/nhle/stoppls/internal/provider/imap"
	"github.com/nhle/stoppls/internal/report"
	"github.com/nhle/stoppls/internal/rules"
)

// Shared output styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	enabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// app bundles the wired-up components a command needs.
type app struct {
	cfg     *model.AppConfig
	rules   *model.RuleConfig
	mailbox provider.Mailbox
	engine  *rules.Engine
	tracker *report.Tracker
	monitor *monitor.Monitor
	log     *slog.Logger

	// storeCloser is non-nil when the action store holds a database
	// connection that must be released on shutdown.
	storeCloser io.Closer
}

// Close releases resources held by the app.
func (a *app) Close() {
	if a.storeCloser != nil {
		if err := a.storeCloser.Close(); err != nil {
			a.log.Error("Error closing action store", "error", err)
		}
	}
}

// resolveRulesPath picks the rule file: the --rules flag, then the
// config, then the default location.
func resolveRulesPath(cfg *model.AppConfig) string {
	if rulesPath != "" {
		return rulesPath
	}
	if cfg.Monitor.RulesPath != "" {
		return cfg.Monitor.RulesPath
	}
	return model.DefaultRulesPath()
}

// loadConfigs reads the application and rule configuration files.
func loadConfigs() (*model.AppConfig, *model.RuleConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	ruleCfg, err := model.LoadRules(resolveRulesPath(cfg))
	if err != nil {
		return nil, nil, err
	}

	return cfg, ruleCfg, nil
}

// buildApp wires configuration, credentials, mailbox provider, rule
// engine, tracker, and monitor. readOnly forces simulation regardless
// of the configured mode.
func buildApp(readOnly bool) (*app, error) {
	log := slog.Default()

	cfg, ruleCfg, err := loadConfigs()
	if err != nil {
		return nil, err
	}

	cfg.Mailbox.Password = credential.ResolveMailboxPassword(cfg.Mailbox.Password)
	if cfg.Mailbox.IMAPHost == "" || cfg.Mailbox.Username == "" {
		return nil, fmt.Errorf(
			"mailbox is not configured; edit %s", configPath,
		)
	}

	mailbox := imap.New(cfg.Mailbox)

	var completer rules.Completer
	if apiKey := credential.ResolveAPIKey(cfg.AI.APIKey); apiKey != "" {
		completer = ai.New(apiKey, cfg.AI.Model, cfg.AI.MaxTokens)
	}
	engine := rules.New(ruleCfg, completer, log)

	store, closer, err := newStore(cfg.Reports)
	if err != nil {
		return nil, err
	}

	tracker, err := report.NewTracker(store, cfg.Reports.Time, log)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	mon := monitor.New(monitor.Options{
		Provider:           mailbox,
		CheckInterval:      time.Duration(cfg.Monitor.CheckIntervalSec) * time.Second,
		MonitoredAddresses: cfg.Monitor.Addresses,
		Engine:             engine,
		ReadOnly:           readOnly || cfg.Monitor.ReadOnly,
		Tracker:            tracker,
		EnableReports:      cfg.Reports.Enabled,
		Logger:             log,
	})

	return &app{
		cfg:         cfg,
		rules:       ruleCfg,
		mailbox:     mailbox,
		engine:      engine,
		tracker:     tracker,
		monitor:     mon,
		log:         log,
		storeCloser: closer,
	}, nil
}

// newStore creates the configured action store backend.
func newStore(cfg model.ReportConfig) (report.Store, io.Closer, error) {
	switch cfg.Store {
	case "", "file":
		store, err := report.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "sqlite":
		store, err := report.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown action store backend %q", cfg.Store)
	}
}
