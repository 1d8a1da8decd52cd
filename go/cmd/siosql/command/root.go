/*
Copyright 2021 Siodb GmbH.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package command contains the siosql command tree.
package command

import (
	"errors"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/siodb/siodb-go-driver/go/log"
	"github.com/siodb/siodb-go-driver/go/siodb"
)

var (
	configFile   string
	serverURI    string
	user         string
	identityFile string
	execute      []string
	trace        bool
	forceTable   bool

	// Root is the main siosql command.
	Root = &cobra.Command{
		Use:   "siosql [server-uri]",
		Short: "siosql runs SQL statements against a Siodb server.",
		Long: "`siosql` is a command-line SQL client for Siodb.\n\n" +
			"It connects to the server named by the positional URI, the --server flag,\n" +
			"the SIOSQL_SERVER environment variable or the config file, in that order of\n" +
			"preference, and authenticates with the private key named by the URI or by\n" +
			"--identity-file. Statements given with --execute run one after another;\n" +
			"without --execute, statements are read from standard input, with a prompt\n" +
			"when standard input is a terminal.",
		Example: `  siosql siodbs://root@localhost:50000
  siosql --server siodb://alice@db1 -e "SELECT * FROM users" -e "SHOW DATABASES"
  echo "SELECT 1;" | siosql`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.Init(cmd.Flags()); err != nil {
				return err
			}
			return loadConfig(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Flush()
		},
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	Root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.siosql.yaml)")
	Root.PersistentFlags().StringVarP(&serverURI, "server", "s", "", "server URI, for example siodbs://root@localhost:50000")
	Root.PersistentFlags().StringVarP(&user, "user", "u", "", "user to authenticate as, overriding the URI")
	Root.PersistentFlags().StringVarP(&identityFile, "identity-file", "i", "", "private key whose public half is registered with the user, overriding the URI")
	Root.PersistentFlags().StringArrayVarP(&execute, "execute", "e", nil, "statement to run instead of reading standard input; repeatable")
	Root.PersistentFlags().BoolVar(&trace, "trace", false, "log every frame sent and received")
	Root.PersistentFlags().BoolVarP(&forceTable, "table", "t", false, "render results as tables even when standard output is not a terminal")
	Root.MarkPersistentFlagFilename("config")
	Root.MarkPersistentFlagFilename("identity-file")

	log.RegisterFlags(Root.PersistentFlags())
}

// loadConfig reads the config file and fills in every setting the
// command line left unset. Flags beat the environment, the environment
// beats the config file, the config file beats defaults.
func loadConfig(cmd *cobra.Command) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".siosql")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("siosql")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// The default config file is optional; one named with --config
		// is not.
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.V(1).Infof("read config from %s", viper.ConfigFileUsed())
	return nil
}

// setting returns the flag value when the flag was given, otherwise
// whatever viper resolved from the environment or the config file.
func setting(cmd *cobra.Command, name, flagValue string) string {
	if cmd.Flags().Changed(name) || !viper.IsSet(name) {
		return flagValue
	}
	return viper.GetString(name)
}

// connParams resolves the connection parameters from the positional
// URI, the flags and the config.
func connParams(cmd *cobra.Command, args []string) (*siodb.ConnParams, error) {
	uri := setting(cmd, "server", serverURI)
	if len(args) > 0 {
		uri = args[0]
	}
	params, err := siodb.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if u := setting(cmd, "user", user); u != "" {
		params.User = u
	}
	if f := setting(cmd, "identity-file", identityFile); f != "" {
		params.IdentityFile = f
	}
	if trace || (!cmd.Flags().Changed("trace") && viper.GetBool("trace")) {
		params.Trace = true
	}
	return params, nil
}

func run(cmd *cobra.Command, args []string) error {
	params, err := connParams(cmd, args)
	if err != nil {
		return err
	}
	conn, err := siodb.Connect(params)
	if err != nil {
		return err
	}
	defer conn.Close()

	sh := &shell{
		conn: conn,
		out:  cmd.OutOrStdout(),
		errw: cmd.ErrOrStderr(),
	}
	sh.table = forceTable
	if f, ok := sh.out.(*os.File); ok && !sh.table {
		sh.table = term.IsTerminal(int(f.Fd()))
	}

	if len(execute) > 0 {
		return sh.runBatch(execute)
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		sh.interactive = term.IsTerminal(int(f.Fd()))
	}
	if sh.interactive {
		sh.printf("Connected to %s://%s as %s.\nType 'quit' or 'exit' to leave.\n\n",
			params.Scheme, params.Address(), conn.User())
	}
	return sh.repl(in)
}
