package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/womat/debug"
	"github.com/womat/utg962"
	"github.com/womat/utg962/pkg/config"
)

// errSyntax makes main print the syntax of the command
var errSyntax = errors.New("syntax error")

type command struct {
	syntax string
	help   string
	run    func(resource string, args []string) error
}

var commands = map[string]command{
	"reset": {
		syntax: "reset",
		help:   "Reset the UTG962 to factory defaults.",
		run: func(resource string, args []string) error {
			if len(args) != 0 {
				return errSyntax
			}
			return utg962.Reset(resource)
		},
	},
	"idn": {
		syntax: "idn",
		help:   "Print the identification of the UTG962.",
		run: func(resource string, args []string) error {
			if len(args) != 0 {
				return errSyntax
			}
			id, err := utg962.Identify(resource)
			if err == nil {
				fmt.Println(id)
			}
			return err
		},
	},
	"list": {
		syntax: "list",
		help:   "List the UTG962 devices connected via USB.",
		run: func(_ string, args []string) error {
			if len(args) != 0 {
				return errSyntax
			}
			l, err := utg962.List()
			for _, i := range l {
				fmt.Printf("%v\t%v\n", i.Resource(), i.Device)
			}
			return err
		},
	},
	"sine": {
		syntax: "sine <channel> <frequency> <low> <high>",
		help:   "Set a channel to a sine wave and enable the output.",
		run: func(resource string, args []string) error {
			n, p, err := parse(args, 1, 4, 4)
			if err != nil {
				return err
			}
			return utg962.SetSine(resource, n[0], p[0], p[1], p[2])
		},
	},
	"square": {
		syntax: "square <channel> <frequency> <low> <high> [<duty>]",
		help:   "Set a channel to a square wave and enable the output. The duty cycle defaults to 50%.",
		run: func(resource string, args []string) error {
			n, p, err := parse(args, 1, 4, 5, 50)
			if err != nil {
				return err
			}
			return utg962.SetSquare(resource, n[0], p[0], p[1], p[2], p[3])
		},
	},
	"ramp": {
		syntax: "ramp <channel> <frequency> <low> <high> [<symmetry>]",
		help:   "Set a channel to a ramp (sawtooth) and enable the output. The symmetry defaults to 50%.",
		run: func(resource string, args []string) error {
			n, p, err := parse(args, 1, 4, 5, 50)
			if err != nil {
				return err
			}
			return utg962.SetRamp(resource, n[0], p[0], p[1], p[2], p[3])
		},
	},
	"arb": {
		syntax: "arb <channel> <index> <frequency> <low> <high>",
		help: "Set a channel to an arbitrary waveform loaded with load-arb and enable the output.\n" +
			"low and high are the voltages of the data points -1.0 and +1.0.",
		run: func(resource string, args []string) error {
			n, p, err := parse(args, 2, 5, 5)
			if err != nil {
				return err
			}
			return utg962.SetArb(resource, n[0], n[1], p[0], p[1], p[2])
		},
	},
	"load-arb": {
		syntax: "load-arb <index> <ARB name> <filename>",
		help: "Load an arbitrary waveform from a text or CSV file into the UTG962.\n" +
			"Text files contain one data point per line in the range -1.0...+1.0,\n" +
			"lines beginning with # are ignored. CSV files (*.csv) hold the data\n" +
			"points in the first column. Up to 4000 data points are supported.\n\n" +
			"Note: the outputs might switch briefly to ARB mode during upload.\n\n" +
			"index: position of ARB in memory (0 or 1)\n" +
			"ARB name: name of the ARB in memory\n" +
			"filename: path to the file",
		run: func(resource string, args []string) error {
			if len(args) != 3 {
				return errSyntax
			}
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return errSyntax
			}
			return utg962.LoadArbFromFile(resource, index, args[1], args[2])
		},
	},
	"output": {
		syntax: "output <channel> on|off",
		help:   "Enable or disable the output of a channel.",
		run: func(resource string, args []string) error {
			if len(args) != 2 {
				return errSyntax
			}
			channel, err := strconv.Atoi(args[0])
			if err != nil {
				return errSyntax
			}
			switch strings.ToLower(args[1]) {
			case "on":
				return utg962.SetOutput(resource, channel, true)
			case "off":
				return utg962.SetOutput(resource, channel, false)
			}
			return errSyntax
		},
	},
	"save-display": {
		syntax: "save-display <filename>",
		help:   "Save the display of the UTG962 to a file. Supported formats are PNG, BMP, TIFF, JPEG and GIF.",
		run: func(resource string, args []string) error {
			if len(args) != 1 {
				return errSyntax
			}
			return utg962.SaveDisplay(resource, args[0])
		},
	},
}

// parse converts between required and total arguments. The first ints
// arguments are integers, e.g. channel and index, the rest are numbers.
// Missing optional arguments are taken from defaults.
func parse(args []string, ints, required, total int, defaults ...float64) (n []int, p []float64, err error) {
	if len(args) < required || len(args) > total {
		return nil, nil, errSyntax
	}

	n = make([]int, ints)
	p = make([]float64, total-ints)
	copy(p[required-ints:], defaults)

	for i, a := range args {
		if i < ints {
			if n[i], err = strconv.Atoi(a); err != nil {
				return nil, nil, errSyntax
			}
			continue
		}

		if p[i-ints], err = strconv.ParseFloat(a, 64); err != nil {
			return nil, nil, errSyntax
		}
	}

	return n, p, nil
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Syntax: %v [options] <command> [<args>]\n\nCommands:\n", os.Args[0])
	for _, name := range []string{"reset", "idn", "list", "sine", "square", "ramp", "arb", "load-arb", "output", "save-display"} {
		fmt.Fprintf(flag.CommandLine.Output(), "  %v\n", commands[name].syntax)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	configFile := flag.String("config", "", "configuration file")
	resource := flag.String("resource", "", "instrument resource, e.g. USB0::0x6656::0x0834::?*::INSTR or TCPIP0::<host>::5025::SOCKET")
	timeout := flag.Duration("timeout", 0, "response timeout")
	verbose := flag.Bool("debug", false, "enable debug output")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "resource":
			cfg.Resource = *resource
		case "timeout":
			cfg.Timeout = *timeout
		case "debug":
			cfg.Log.Debug = *verbose
		}
	})
	if err = cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	cfg.SetupLogging()
	utg962.Timeout = cfg.Timeout

	name := flag.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(1)
	}

	start := time.Now()
	err = cmd.run(cfg.Resource, flag.Args()[1:])
	debug.DebugLog.Printf("%v finished in %v", name, time.Since(start))

	switch {
	case errors.Is(err, errSyntax):
		fmt.Fprintf(os.Stderr, "Syntax: %v %v\n\n%v\n", os.Args[0], cmd.syntax, cmd.help)
		os.Exit(1)
	case err != nil:
		debug.ErrorLog.Printf("%v: %v", name, err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
