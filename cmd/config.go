package cmd

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "jarvis"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	projectRootFlagName = "project"
	verboseFlagName     = "verbose"
	dryRunFlagName      = "dry-run"
	targetFlagName      = "target"
	goalFlagName        = "goal"
	limitFlagName       = "lines"

	projectRootKey = "project.root"
	allowedRootKey = "sandbox.allowed_root"

	criticalFilesKey      = "reload.critical_files"
	dependencyManifestKey = "reload.dependency_manifests"
	compiledExtensionsKey = "reload.compiled_extensions"
	reloadTimeoutKey      = "reload.timeout"

	maxBackupsKey = "backup.max_backups"

	generatorProviderKey    = "generator.provider"
	generatorModelKey       = "generator.model"
	generatorAPIKeyKey      = "generator.api_key"
	generatorBaseURLKey     = "generator.base_url"
	generatorMinIntervalKey = "generator.min_interval"
	generatorMaxAttemptsKey = "generator.max_attempts"
	generatorBaseDelayKey   = "generator.base_delay"
	generatorTimeoutKey     = "generator.timeout"
	geminiAPIKeyKey         = "generator.gemini_api_key"
	openAIAPIKeyKey         = "generator.openai_api_key"

	validateTimeoutKey  = "validate.timeout"
	validateLintKey     = "validate.lint_command"
	validateTestKey     = "validate.test_command"
	validateTestDirKey  = "validate.test_dir"
	validateParallelKey = "validate.parallel"

	healthCommandKey   = "health.command"
	restartModeKey     = "restart.mode"
	metricsTextfileKey = "metrics.textfile"
	traceFilenameKey   = "trace.filename"

	defaultProjectRoot       = "."
	defaultMaxBackups        = 10
	defaultGeneratorProvider = providerGemini
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultOpenAIModel       = "gpt-4o-mini"
	defaultMinInterval       = time.Second
	defaultMaxAttempts       = 3
	defaultBaseDelay         = time.Second
	defaultGeneratorTimeout  = 30 * time.Second
	defaultValidateTimeout   = 2 * time.Minute
	defaultLintCommand       = "ruff check"
	defaultTestCommand       = "python -m pytest -q"
	defaultTestDir           = "tests"
	defaultValidateParallel  = 4
	defaultReloadTimeout     = 10 * time.Second
	defaultTraceFilename     = "logs/traces.jsonl"

	providerGemini = "gemini"
	providerOpenAI = "openai"

	envPrefix = "JARVIS"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = "logs/self_modify.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

// Project layout under the project root. These directories are never valid
// change targets.
const (
	backupsDirName    = "backups"
	logsDirName       = "logs"
	stateDirName      = ".jarvis"
	journalFileName   = "journal.gob"
	restartMarkerName = "restart.cbor"
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setConfigDefaults()
	bindLegacyEnv()

	_ = readConfig()
}

func setConfigDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(projectRootKey, defaultProjectRoot)
	viper.SetDefault(allowedRootKey, "")

	viper.SetDefault(criticalFilesKey, []string{"main.py", "config.py", "main.go"})
	viper.SetDefault(dependencyManifestKey, []string{"requirements.txt", "pyproject.toml", "Pipfile", "go.mod", "go.sum", "package.json"})
	viper.SetDefault(compiledExtensionsKey, []string{".go"})
	viper.SetDefault(reloadTimeoutKey, defaultReloadTimeout.String())

	viper.SetDefault(maxBackupsKey, defaultMaxBackups)

	viper.SetDefault(generatorProviderKey, defaultGeneratorProvider)
	viper.SetDefault(generatorModelKey, "")
	viper.SetDefault(generatorAPIKeyKey, "")
	viper.SetDefault(generatorBaseURLKey, "")
	viper.SetDefault(generatorMinIntervalKey, defaultMinInterval.String())
	viper.SetDefault(generatorMaxAttemptsKey, defaultMaxAttempts)
	viper.SetDefault(generatorBaseDelayKey, defaultBaseDelay.String())
	viper.SetDefault(generatorTimeoutKey, defaultGeneratorTimeout.String())

	viper.SetDefault(validateTimeoutKey, defaultValidateTimeout.String())
	viper.SetDefault(validateLintKey, defaultLintCommand)
	viper.SetDefault(validateTestKey, defaultTestCommand)
	viper.SetDefault(validateTestDirKey, defaultTestDir)
	viper.SetDefault(validateParallelKey, defaultValidateParallel)

	viper.SetDefault(healthCommandKey, "")
	viper.SetDefault(restartModeKey, "")
	viper.SetDefault(metricsTextfileKey, "")
	viper.SetDefault(traceFilenameKey, defaultTraceFilename)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// bindLegacyEnv accepts the unprefixed variable names deployments already use.
func bindLegacyEnv() {
	bindings := map[string][]string{
		logLevelKey:         {"JARVIS_LOG_LEVEL", "LOG_LEVEL"},
		generatorTimeoutKey: {"JARVIS_GENERATOR_TIMEOUT", "REQUEST_TIMEOUT"},
		reloadTimeoutKey:    {"JARVIS_RELOAD_TIMEOUT", "RELOAD_TIMEOUT"},
		geminiAPIKeyKey:     {"GEMINI_API_KEY"},
		openAIAPIKeyKey:     {"OPENAI_API_KEY"},
		allowedRootKey:      {"JARVIS_SANDBOX_ALLOWED_ROOT", "ALLOWED_ROOT"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		_ = viper.BindEnv(args...)
	}
}

// readConfig loads jarvis.yaml when present.
func readConfig() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

// durationSetting reads a duration key. Plain integers are seconds.
func durationSetting(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return fallback
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration in config, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}

	return d
}

// commandSetting splits a configured command line into argv.
func commandSetting(key string) []string {
	return strings.Fields(viper.GetString(key))
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
