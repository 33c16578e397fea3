package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/hemantobora/mcc/internal/cloud"
	"github.com/hemantobora/mcc/internal/config"
	"github.com/hemantobora/mcc/internal/display"
	"github.com/hemantobora/mcc/internal/inventory"
	"github.com/hemantobora/mcc/internal/models"
	"github.com/hemantobora/mcc/internal/repl"
)

func newLogger(c *cli.Context) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if c.Bool("debug") {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func configPath(c *cli.Context) (string, error) {
	if p := c.String("config"); p != "" {
		return p, nil
	}
	return config.DefaultPath()
}

// loadConfig loads the configuration and prints the providers it dropped
func loadConfig(c *cli.Context) (*config.Config, error) {
	path, err := configPath(c)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if errors.Is(err, config.ErrConfigCreated) {
		fmt.Printf("📝 Created configuration template at %s\n", path)
		fmt.Println("💡 Add your provider credentials (or run 'mcc configure') and start mcc again")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	return cfg, nil
}

// newCollector draws the busy indicator only when stdout is a terminal
func newCollector(cfg *config.Config, log *logrus.Logger) *cloud.Collector {
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	factory := cloud.NewFactory(cloud.WithConfigDir(cfg.Dir), cloud.WithLogger(log))
	return cloud.NewCollector(factory, cfg.Credentials, cfg.Providers,
		cloud.WithLoaderOutput(os.Stdout, models.WithTerminal(tty), models.WithANSI(tty)),
		cloud.WithCollectorLogger(log),
	)
}

// interactiveCommand renders the table and drives the command loop until quit
func interactiveCommand(c *cli.Context) error {
	log := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	var keys repl.KeyReader = repl.NewKeyReader(os.Stdin)
	if t := repl.NewTerminal(os.Stdin); t.IsTerminal() {
		keys = t
	}

	loop := repl.New(newCollector(cfg, log), keys, repl.WithLogger(log))
	return loop.Run(ctx)
}

// listCommand prints the table once without the numbering column
func listCommand(c *cli.Context) error {
	log := newLogger(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	theme := display.NewTheme(os.Stdout)
	res, err := newCollector(cfg, log).Collect(ctx)
	if res != nil {
		for _, w := range res.Warnings {
			fmt.Println(theme.Warn.Render(w))
		}
	}
	if err != nil {
		return err
	}

	table, err := display.ListTable(inventory.Build(res.Instances), theme)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", table)
	return nil
}

// configureCommand interactively writes provider credentials
func configureCommand(c *cli.Context) error {
	path, err := configPath(c)
	if err != nil {
		return err
	}
	if err := config.Configure(path); err != nil {
		return errors.Wrap(err, "configure")
	}
	fmt.Printf("✅ Configuration written to %s\n", path)
	return nil
}
