package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rlee287/merkle-tree-checksum/pkg/merkle"
)

const (
	optionNameJobs  = "jobs"
	optionNameQuiet = "quiet"
)

func init() {
	cobra.EnableCommandSorting = false
}

// command wraps the cobra command tree and the shared, resolved global
// state (worker count, logger, config) that every subcommand reads.
type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string

	jobs   int
	quiet  int
	logger logrus.FieldLogger
}

func newCommand() (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "merkle-tree-checksum",
			Short:         "Compute and verify block-oriented Merkle tree checksums",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				if err := c.initConfig(); err != nil {
					return err
				}
				c.logger = newLogger(cmd, c.quiet)
				return nil
			},
		},
	}

	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()
	c.initGenerateCmd()
	c.initVerifyCmd()
	c.initVersionCmd()

	return c, nil
}

func (c *command) Execute() error {
	return c.root.Execute()
}

// Execute builds the command tree and runs it; it is the sole entry point
// called from main.
func Execute() error {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	pf := c.root.PersistentFlags()
	pf.IntVar(&c.jobs, optionNameJobs, 4, "number of hashing worker goroutines (0 runs inline)")
	pf.CountVarP(&c.quiet, optionNameQuiet, "q", "reduce output; repeat to suppress more (once hides progress, twice suppresses all non-error output)")
	pf.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.merkle-tree-checksum.yaml)")
}

func (c *command) setHomeDir() error {
	dir, err := os.UserHomeDir()
	if err != nil {
		// A missing home directory only disables the optional config file,
		// it is not fatal to the rest of the program.
		c.homeDir = ""
		return nil
	}
	c.homeDir = dir
	return nil
}

// initConfig loads the optional viper config file. Its values seed
// generate-hash's flag defaults (branch factor, block length, hash
// function); explicit flags on the command line still win.
func (c *command) initConfig() error {
	v := viper.New()
	configName := ".merkle-tree-checksum"
	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else if c.homeDir != "" {
		v.AddConfigPath(c.homeDir)
		v.SetConfigName(configName)
	}

	v.SetEnvPrefix("merkle_tree_checksum")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && c.cfgFile != "" {
			return err
		}
	}
	c.config = v
	return nil
}

// newLogger maps the repeatable --quiet flag onto a logrus level, the way
// bee's newLogger maps its --verbosity flag.
func newLogger(cmd *cobra.Command, quiet int) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(cmd.ErrOrStderr())
	switch {
	case quiet <= 0:
		l.SetLevel(logrus.InfoLevel)
	case quiet == 1:
		l.SetLevel(logrus.WarnLevel)
	default:
		l.SetLevel(logrus.ErrorLevel)
	}
	return l
}

// ExitCodeFor maps a returned error to the process exit code contract:
// 0 success, 1 verification found a mismatch, 2 everything else fatal.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var mismatch *merkle.VerifyMismatchError
	if errors.As(err, &mismatch) {
		return 1
	}
	if err == errVerifyMismatchFound {
		return 1
	}
	return 2
}

// errVerifyMismatchFound is a sentinel returned by verify-hash's RunE when
// mismatches were found and reported but the run itself completed cleanly.
var errVerifyMismatchFound = fmt.Errorf("verification found one or more hash mismatches")
