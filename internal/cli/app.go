// Package cli implements authctl, which runs service methods in process
// against the configured storage.
package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/urfave/cli/v2"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/config"
	"github.com/goliatone/go-auth-service/exception"
	"github.com/goliatone/go-auth-service/internal/bootstrap"
	"github.com/goliatone/go-auth-service/pipeline"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const redacted = "********"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "authctl",
		Usage:   "call auth and user service methods",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CallCommand(),
			ConfigCommand(),
			MethodsCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"AUTHSVC_CONFIG"},
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "override a configuration key, e.g. --set storage.driver=sqlite",
		},
		&cli.StringFlag{
			Name:  "env-prefix",
			Usage: "environment variable prefix",
			Value: config.DefaultEnvPrefix,
		},
	}
}

// CallCommand runs `authctl call <service> <method> key=value...`. Values
// are URL decoded.
func CallCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "invoke a service method",
		ArgsUsage: "<service> <method> [key=value...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("call requires a service and a method", 2)
			}
			service, method := c.Args().Get(0), c.Args().Get(1)
			event, err := parseEvent(c.Args().Slice()[2:])
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			app, err := openApp(c)
			if err != nil {
				return err
			}
			defer app.Close()

			dispatcher, ok := dispatcherFor(app.Dispatchers, service)
			if !ok {
				return printException(c, exception.NewNotFound(exception.KeyMethodNotFound, map[string]string{
					"method": service + "." + method,
				}))
			}

			result, err := dispatcher.Call(contextOf(c), method, event, nil)
			if err != nil {
				return printException(c, err)
			}
			fmt.Fprintln(c.App.Writer, print.MaybePrettyJSON(result))
			return nil
		},
	}
}

// ConfigCommand prints the resolved configuration with secrets redacted.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the resolved configuration",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, print.MaybePrettyJSON(Redact(cfg)))
			return nil
		},
	}
}

// MethodsCommand lists every service method with its required fields.
func MethodsCommand() *cli.Command {
	return &cli.Command{
		Name:  "methods",
		Usage: "list service methods",
		Action: func(c *cli.Context) error {
			app, err := openApp(c)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, d := range app.Dispatchers.All() {
				for _, method := range d.Methods() {
					meta := d.Metadata(method)
					fmt.Fprintf(c.App.Writer, "%s %s required=%s resources=%s\n",
						d.Owner(), method,
						strings.Join(meta.RequiredFields, ","),
						strings.Join(meta.ResourceNames, ","),
					)
				}
			}
			return nil
		},
	}
}

// Redact returns cfg with every secret replaced.
func Redact(cfg auth.Config) auth.Config {
	out := cfg
	if out.Session.Secret != "" {
		out.Session.Secret = redacted
	}
	out.Tokens = make(map[string]auth.CredentialConfig, len(cfg.Tokens))
	for category, tc := range cfg.Tokens {
		if tc.Secret != "" {
			tc.Secret = redacted
		}
		out.Tokens[category] = tc
	}
	if out.Storage.RedisPassword != "" {
		out.Storage.RedisPassword = redacted
	}
	return out
}

func parseEvent(args []string) (pipeline.RawEvent, error) {
	event := pipeline.RawEvent{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		event[key] = decoded
	}
	return event, nil
}

func dispatcherFor(d auth.Dispatchers, service string) (*pipeline.Dispatcher, bool) {
	for _, dispatcher := range d.All() {
		if strings.EqualFold(dispatcher.Owner(), service) {
			return dispatcher, true
		}
	}
	return nil, false
}

func printException(c *cli.Context, err error) error {
	ex := exception.From(err)
	ex.Localized = exception.DefaultLabels.Localize(ex)
	fmt.Fprintln(c.App.ErrWriter, print.MaybePrettyJSON(ex))
	return cli.Exit("", 1)
}

func loadConfig(c *cli.Context) (auth.Config, error) {
	values := map[string]any{}
	for _, kv := range c.StringSlice("set") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return auth.Config{}, cli.Exit(fmt.Sprintf("--set %q is not key=value", kv), 2)
		}
		values[key] = value
	}
	return config.Load(contextOf(c),
		config.WithConfigFile(c.String("config")),
		config.WithEnvPrefix(c.String("env-prefix")),
		config.WithValues(values),
	)
}

func openApp(c *cli.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = "error"
	return bootstrap.New(contextOf(c), cfg)
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
