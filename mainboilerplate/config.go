package mainboilerplate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// ConfigRootEnv names an environment variable of an additional directory
// searched for INI configuration.
const ConfigRootEnv = "SQLKV_CONFIG_ROOT"

// ConfigDirs returns directories searched for an INI file, in order:
//   - The current working directory.
//   - ~/.config/sqlkv (under the user's $HOME or %UserProfile% directory).
//   - $SQLKV_CONFIG_ROOT, if set.
func ConfigDirs() []string {
	var dirs = []string{"."}
	for _, home := range []string{os.Getenv("HOME"), os.Getenv("UserProfile")} {
		if home != "" {
			dirs = append(dirs, filepath.Join(home, ".config", "sqlkv"))
		}
	}
	if root := os.Getenv(ConfigRootEnv); root != "" {
		dirs = append(dirs, root)
	}
	return dirs
}

// ParseConfigFile parses the first INI file |configName| found within
// |dirs| into the Parser. Options unknown to the Parser are ignored.
// It returns the path of the parsed file, or "" if none was found.
func ParseConfigFile(parser *flags.Parser, configName string, dirs []string) (string, error) {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, dir := range dirs {
		var path = filepath.Join(dir, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", errors.WithMessagef(err, "parsing %s", path)
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file found within ConfigDirs, configured environment
// bindings, and explicit flags.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName, ConfigDirs()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs requires that Parser be able to ParseArgs without error.
func MustParseArgs(parser *flags.Parser) {
	var _, err = parser.ParseArgs(os.Args[1:])
	if err == nil {
		return
	}
	var flagErr, ok = err.(*flags.Error)
	if !ok {
		Must(err, "fatal error")
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// A developer error in the configuration object, rather than of input.
		panic(err)

	case flags.ErrCommandRequired, flags.ErrHelp:
		if flagErr.Type == flags.ErrCommandRequired {
			os.Stderr.WriteString("\n")
		}
		if flagErr.Type == flags.ErrCommandRequired || parser.Options&flags.PrintErrors == 0 {
			parser.WriteHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "\nVersion %s, built at %s.\n", Version, BuildDate)
		os.Exit(1)

	default:
		// go-flags has already printed the input error.
		os.Exit(1)
	}
}

// AddPrintConfigCmd to the Parser. The "print-config" command exports all
// runtime configuration in INI format.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	_, _ = parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{parser})
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
}

func (p printConfig) Execute([]string) error {
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(os.Stdout, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}
