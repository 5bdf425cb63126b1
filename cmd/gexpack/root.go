package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "GEXPACK"

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "gexpack",
		Short: "Pack single-cell gene expression matrices into indexed binary containers.",
		Long: `Pack single-cell gene expression matrices into indexed binary containers.

Gene identifiers are canonicalised against an HGNC or MGI reference table
before records are written. Every flag may also be set through a
GEXPACK_<FLAG> environment variable or a configuration file.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setAllConfig(viper.New(), cmd.Flags())
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")

	rc.AddCommand(newBuildCommand(stdout))
	rc.AddCommand(newIndexCommand(stdout))
	rc.AddCommand(newQueryCommand(stdout))
	rc.AddCommand(newSnapshotCommand(stdout))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig applies configuration from flags, GEXPACK_* environment
// variables and an optional config file, in that order of priority.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}

		valid := make(map[string]bool)
		flags.VisitAll(func(f *pflag.Flag) { valid[f.Name] = true })
		for _, key := range v.AllKeys() {
			if !valid[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}

		var value string
		if f.Value.Type() == "stringSlice" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		flagErr = f.Value.Set(value)
	})
	return flagErr
}

func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
