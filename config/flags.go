package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string
	Role    string

	// Game/main policy
	TerminalLength int
	GameDifficulty int
	MainDifficulty int

	// P2P
	P2P        bool
	P2PPort    int
	Seeds      string
	NoDiscover bool

	// Journal
	Journal bool
	Badger  bool

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetP2P        bool
	SetNoDiscover bool
	SetJournal    bool
	SetBadger     bool
	SetLogJSON    bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("klingnetd", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Role, "role", "demo", "Node role: demo (in-process topology), player, or mainnode")

	fs.IntVar(&f.TerminalLength, "terminal-length", 0, "Number of GameBlocks at which a game is final")
	fs.IntVar(&f.GameDifficulty, "game-difficulty", 0, "Leading-zero difficulty for GameBlock mining")
	fs.IntVar(&f.MainDifficulty, "main-difficulty", 0, "Leading-zero difficulty for MainBlock mining")

	fs.BoolVar(&f.P2P, "p2p", false, "Set p2p.enabled (networking is selected by --role)")
	fs.IntVar(&f.P2PPort, "p2p-port", 0, "P2P listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "Seed nodes as comma-separated libp2p multiaddrs")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable DHT peer discovery")

	fs.BoolVar(&f.Journal, "journal", true, "Enable the on-disk JSON audit trail")
	fs.BoolVar(&f.Badger, "badger", false, "Mirror journal snapshots into a badger-backed KV store")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetP2P = isFlagSet(fs, "p2p")
	f.SetNoDiscover = isFlagSet(fs, "nodiscover")
	f.SetJournal = isFlagSet(fs, "journal")
	f.SetBadger = isFlagSet(fs, "badger")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintf(os.Stderr, "Error: flag %q was not parsed (positional argument stopped parsing)\n", arg)
			os.Exit(1)
		}
	}

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	if f.TerminalLength != 0 {
		cfg.Game.TerminalLength = f.TerminalLength
	}
	if f.GameDifficulty != 0 {
		cfg.Game.Difficulty = f.GameDifficulty
	}
	if f.MainDifficulty != 0 {
		cfg.Main.Difficulty = f.MainDifficulty
	}

	if f.SetP2P {
		cfg.P2P.Enabled = f.P2P
	}
	if f.P2PPort != 0 {
		cfg.P2P.Port = f.P2PPort
	}
	if f.Seeds != "" {
		cfg.P2P.Seeds = parseStringList(f.Seeds)
	}
	if f.SetNoDiscover {
		cfg.P2P.NoDiscover = f.NoDiscover
	}

	if f.SetJournal {
		cfg.Journal.Enabled = f.Journal
	}
	if f.SetBadger {
		cfg.Journal.Badger = f.Badger
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Chesschain - a two-tier chess/blockchain consensus demo

Usage:
  klingnetd [options]
  klingnetd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --datadir           Data directory (default: ~/.chesschain)
  --config, -c        Config file path (default: <datadir>/chesschain.conf)
  --role              demo (default), player, or mainnode

Policy Options:
  --terminal-length   GameBlocks at which a game is final (default: 3)
  --game-difficulty   Leading-zero difficulty for GameBlock mining (default: 4)
  --main-difficulty   Leading-zero difficulty for MainBlock mining (default: 7)

P2P Options:
  --p2p           Set p2p.enabled (default: false); networking is selected by --role
  --p2p-port      P2P listen port
  --seeds         Seed nodes as comma-separated libp2p multiaddrs
  --nodiscover    Disable DHT peer discovery

Journal Options:
  --journal       Enable the on-disk JSON audit trail (default: true)
  --badger        Mirror journal snapshots into a badger-backed KV store

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Start a single-process demo with in-process players and main nodes
  klingnetd

  # Start a networked node joining an existing gossip mesh
  klingnetd --role=mainnode --seeds=/ip4/203.0.113.1/tcp/4001/p2p/12D3KooW...
`
	fmt.Print(usage)
}
