package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/livngcorpse/jarvis/internal/adapter"
	"github.com/livngcorpse/jarvis/internal/domain"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/spf13/viper"
)

// phaseObserver forwards pipeline progress to whichever UI is current.
type phaseObserver struct{}

func (phaseObserver) DisplayPhase(ctx context.Context, phase m.Phase) {
	if ui != nil {
		ui.DisplayPhase(ctx, phase)
	}
}

// unavailableGenerator stands in when no backend could be configured so that
// commands which never generate keep working.
type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) Generate(context.Context, string, string) (string, error) {
	return "", g.err
}

func (g unavailableGenerator) Classify(context.Context, string) (string, error) {
	return "", g.err
}

func projectRoot() (string, error) {
	root, err := filepath.Abs(viper.GetString(projectRootKey))
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}

	return root, nil
}

func inProject(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(root, p)
}

func buildSelfModifier(ctx context.Context, mode domain.RestartMode) (domain.SelfModifier, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	logPath := inProject(root, viper.GetString(logFilenameKey))
	configureLogger(logPath, verboseFlag)

	tracePath := viper.GetString(traceFilenameKey)
	if tracePath != "" {
		tracePath = inProject(root, tracePath)
	}

	if err := configureTracing(tracePath); err != nil {
		return nil, err
	}

	reserved := []string{domain.StagingDirName, backupsDirName, logsDirName, stateDirName}

	guard, err := domain.NewSandboxGuard(m.Path(root), m.Path(viper.GetString(allowedRootKey)), reserved...)
	if err != nil {
		slog.Error("Failed to create sandbox guard", "root", root, "error", err)
		return nil, fmt.Errorf("failed to create sandbox guard: %w", err)
	}

	fsAdapter := adapter.NewLocalSourceFSAdapter(reserved...)
	writer := adapter.NewLocalAtomicFileWriter()
	parser := adapter.NewLocalSourceParser()
	runner := adapter.NewLocalCommandRunner(durationSetting(validateTimeoutKey, defaultValidateTimeout))
	metrics := domain.NewMetrics()

	markers, err := adapter.NewCBORRestartMarkerStore(m.Path(filepath.Join(root, stateDirName, restartMarkerName)), writer)
	if err != nil {
		return nil, err
	}

	process := domain.NewProcessController(markers, processOptions(root, mode, runner)...)
	registerReloadUnits(process)

	// Logs why this process was started when it replaced a previous one.
	process.RestartMarker(ctx)

	reports := adapter.NewJournalReportStore(m.Path(filepath.Join(root, stateDirName, journalFileName)))
	closers = append(closers, reports.Close)

	client := domain.NewGenerationClient(newGenerator(ctx), domain.GenerationClientConfig{
		MinInterval: durationSetting(generatorMinIntervalKey, defaultMinInterval),
		MaxAttempts: viper.GetInt(generatorMaxAttemptsKey),
		BaseDelay:   durationSetting(generatorBaseDelayKey, defaultBaseDelay),
		Timeout:     durationSetting(generatorTimeoutKey, defaultGeneratorTimeout),
	}, metrics)

	deps := domain.SelfModifierDeps{
		Guard:     guard,
		Extractor: domain.NewChangeExtractor(),
		Backups:   domain.NewBackupStore(fsAdapter, writer, m.Path(root), m.Path(filepath.Join(root, backupsDirName))),
		Staging:   domain.NewStagingArea(guard, fsAdapter, writer, m.Path(filepath.Join(root, domain.StagingDirName))),
		Validator: domain.NewValidator(domain.ValidatorConfig{
			ProjectRoot: m.Path(root),
			LintCommand: commandSetting(validateLintKey),
			TestCommand: commandSetting(validateTestKey),
			TestDir:     viper.GetString(validateTestDirKey),
			Parallel:    viper.GetInt(validateParallelKey),
		}, fsAdapter, parser, runner),
		Applier: domain.NewApplier(guard, fsAdapter, writer),
		Decider: domain.NewReloadDecider(domain.ReloadConfig{
			CriticalFiles:       viper.GetStringSlice(criticalFilesKey),
			DependencyManifests: viper.GetStringSlice(dependencyManifestKey),
			CompiledExtensions:  viper.GetStringSlice(compiledExtensionsKey),
		}, parser, fsAdapter, m.Path(root)),
		Process:   process,
		Client:    client,
		Context:   domain.NewProjectContextBuilder(guard, fsAdapter),
		Previewer: domain.NewPreviewer(guard, fsAdapter),
		Reports:   reports,
		Metrics:   metrics,
		Observer:  phaseObserver{},
	}

	textfile := viper.GetString(metricsTextfileKey)
	if textfile != "" {
		textfile = inProject(root, textfile)
	}

	slog.Debug("Pipeline configured", "root", root, "restartMode", mode, "provider", viper.GetString(generatorProviderKey))

	return domain.NewSelfModifier(deps, domain.SelfModifierConfig{
		MaxBackups:      viper.GetInt(maxBackupsKey),
		LogPath:         logPath,
		MetricsTextfile: textfile,
	}), nil
}

func processOptions(root string, mode domain.RestartMode, runner adapter.CommandRunner) []domain.ProcessOption {
	opts := []domain.ProcessOption{
		domain.WithRestartMode(mode),
		domain.WithReloadTimeout(durationSetting(reloadTimeoutKey, defaultReloadTimeout)),
	}

	if argv := commandSetting(healthCommandKey); len(argv) > 0 {
		opts = append(opts, domain.WithHealthProbe(domain.CommandHealthProbe(runner, root, argv)))
	}

	return opts
}

// registerReloadUnits registers the units this process can reload in place.
// The configuration file is one of them.
func registerReloadUnits(process domain.ProcessController) {
	process.Register(domain.UnitName(configFileName), domain.ReloadFunc(func(context.Context) error {
		if err := readConfig(); err != nil {
			slog.Error("Failed to reload config", "file", viper.ConfigFileUsed(), "error", err)
			return fmt.Errorf("failed to reload config: %w", err)
		}

		slog.Info("Config reloaded", "file", viper.ConfigFileUsed())

		return nil
	}))
}

// generatorAPIKey returns the key for provider, falling back to the
// provider-specific variable.
func generatorAPIKey(provider string) string {
	if key := viper.GetString(generatorAPIKeyKey); key != "" {
		return key
	}

	switch provider {
	case providerOpenAI:
		return viper.GetString(openAIAPIKeyKey)
	case providerGemini:
		return viper.GetString(geminiAPIKeyKey)
	}

	return ""
}

func generatorProvider() string {
	return strings.ToLower(strings.TrimSpace(viper.GetString(generatorProviderKey)))
}

func newGenerator(ctx context.Context) adapter.Generator {
	provider := generatorProvider()
	model := viper.GetString(generatorModelKey)
	apiKey := generatorAPIKey(provider)

	var (
		gen adapter.Generator
		err error
	)

	switch provider {
	case providerOpenAI:
		if model == "" {
			model = defaultOpenAIModel
		}

		gen, err = adapter.NewOpenAIGenerator(apiKey, viper.GetString(generatorBaseURLKey), model)
	case providerGemini:
		if model == "" {
			model = defaultGeminiModel
		}

		gen, err = adapter.NewGeminiGenerator(ctx, apiKey, model)
	default:
		err = fmt.Errorf("unknown generator provider %q", provider)
	}

	if err != nil {
		slog.Warn("Generator unavailable", "provider", provider, "error", err)
		return unavailableGenerator{err: err}
	}

	return gen
}
