package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/puppet/pkg/puppet"
)

type Options struct {
	Config    string `short:"c" long:"config" env:"PUPPET_CONFIG" description:"Configuration file (default puppet.json)"`
	LogLevel  string `long:"log-level" env:"PUPPET_LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	LogFormat string `long:"log-format" env:"PUPPET_LOG_FORMAT" default:"text" description:"Log format (text, json)"`
	DryRun    bool   `long:"dry-run" description:"Use the simulated driver instead of hardware"`

	Run         RunCommand         `command:"run" description:"Reset the puppet and play a short demo"`
	Pose        PoseCommand        `command:"pose" description:"Move the puppet to a named pose"`
	Seq         SeqCommand         `command:"seq" alias:"sequence" description:"Play a named sequence"`
	List        ListCommand        `command:"list" alias:"ls" description:"List poses or sequences"`
	Demo        DemoCommand        `command:"demo" description:"Play the demo sequences"`
	Interactive InteractiveCommand `command:"interactive" alias:"i" description:"Start the interactive command loop"`
	Monitor     MonitorCommand     `command:"monitor" description:"Play a sequence while charting joint angles"`
	Pick        PickCommand        `command:"pick" description:"Choose a pose or sequence from a menu"`
	Define      DefineCommand      `command:"define" description:"Define a pose and save it to the poses file"`
	Setup       SetupCommand       `command:"setup" description:"Identify which servo sits on which channel"`
	Sweep       SweepCommand       `command:"sweep" description:"Sweep a single servo through its range"`
	Ports       PortsCommand       `command:"ports" description:"List serial ports"`
	Serve       ServeCommand       `command:"serve" description:"Serve the HTTP remote control API"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Puppet - animatronic string puppet control CLI"

	if err := puppet.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
