package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/telekom/tokenctl/pkg/system"
	"github.com/telekom/tokenctl/pkg/tokenctl/auth"
	"github.com/telekom/tokenctl/pkg/tokenctl/config"
	"github.com/telekom/tokenctl/pkg/tokenctl/profile"
)

// Config wires the command tree. Zero values select the production
// implementations.
type Config struct {
	Context      context.Context
	ConfigPath   string
	OutputWriter io.Writer
	Logger       *zap.Logger
	Connector    auth.Connector
	Clock        clock.PassiveClock
	OpenBrowser  func(url string) error
}

type runtimeState struct {
	configPath  string
	profilesDir string
	issuer      string
	verbose     bool
	settings    *config.Settings
	writer      io.Writer
	log         *zap.SugaredLogger
	baseLogger  *zap.Logger
	connector   auth.Connector
	clock       clock.PassiveClock
	openBrowser func(string) error
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		OpenBrowser:  auth.OpenBrowser,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:  cfg.ConfigPath,
		writer:      cfg.OutputWriter,
		baseLogger:  cfg.Logger,
		connector:   cfg.Connector,
		clock:       cfg.Clock,
		openBrowser: cfg.OpenBrowser,
	}

	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Cache and refresh OpenID Connect tokens for named profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.clock == nil {
				rt.clock = clock.RealClock{}
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}

			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			rt.verbose = rt.verbose || env.Verbose
			rt.initLogger()

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.loadSettings(env)
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVar(&rt.profilesDir, "profiles-dir", "", "Directory holding the profile files")
	root.PersistentFlags().StringVar(&rt.issuer, "issuer", "", "OpenID issuer URL")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	root.SetContext(context.WithValue(parent, runtimeKey{}, rt))

	root.AddCommand(
		NewListCommand(),
		NewLoginCommand(),
		NewAccessTokenCommand(),
		NewIDTokenCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) initLogger() {
	base := rt.baseLogger
	if base == nil {
		base = system.NewLogger(rt.verbose)
	}
	rt.log = base.Sugar().With("invocation", uuid.NewString())
}

// loadSettings resolves settings with flag > env > file > default
// precedence.
func (rt *runtimeState) loadSettings(env *config.Env) error {
	settings, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	if err := env.Apply(settings); err != nil {
		return err
	}
	if rt.issuer != "" {
		settings.Issuer = rt.issuer
	}
	if rt.profilesDir != "" {
		settings.ProfilesDir = rt.profilesDir
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", rt.configPath, err)
	}
	rt.settings = settings
	rt.log.Debugw("Settings loaded", "config", rt.configPath, "issuer", settings.Issuer,
		"profilesDir", settings.EffectiveProfilesDir())
	return nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		return zap.NewNop().Sugar()
	}
	return rt.log
}

func (rt *runtimeState) store() *profile.Store {
	return profile.NewStore(rt.settings.EffectiveProfilesDir())
}

func (rt *runtimeState) oidcConnector() auth.Connector {
	if rt.connector != nil {
		return rt.connector
	}
	return &auth.OIDCConnector{
		CAFile:          rt.settings.CAFile,
		InsecureSkipTLS: rt.settings.InsecureSkipTLSVerify,
	}
}

func (rt *runtimeState) refreshFlow(store *profile.Store) *auth.RefreshFlow {
	return &auth.RefreshFlow{
		Store:          store,
		Connector:      rt.oidcConnector(),
		Issuer:         rt.settings.Issuer,
		Clock:          rt.clock,
		Log:            rt.Logger(),
		RequireIDToken: rt.settings.RequireIDTokenOnRefresh,
	}
}

func (rt *runtimeState) tokenManager() *auth.TokenManager {
	store := rt.store()
	return &auth.TokenManager{
		Store:     store,
		Refresher: rt.refreshFlow(store),
		Clock:     rt.clock,
		Log:       rt.Logger(),
	}
}
