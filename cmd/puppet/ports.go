package main

import (
	"context"
	"fmt"

	"github.com/gwillem/puppet/pkg/puppet"
	"github.com/gwillem/puppet/pkg/servo"
)

type PortsCommand struct {
	Scan  bool `long:"scan" description:"Probe each port for Feetech bus servos"`
	MaxID int  `long:"max-id" default:"16" description:"Highest servo ID to probe"`
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := puppet.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}

	fmt.Println(headerStyle.Render("Serial ports"))
	for _, port := range ports {
		if !c.Scan {
			fmt.Printf("  %s\n", port)
			continue
		}

		ids, err := servo.ScanFeetech(context.Background(), port, c.MaxID)
		switch {
		case err != nil:
			fmt.Printf("  %s %s\n", port, dimStyle.Render(err.Error()))
		case len(ids) == 0:
			fmt.Printf("  %s %s\n", port, dimStyle.Render("no servos"))
		default:
			fmt.Printf("  %s %s\n", port, successStyle.Render(fmt.Sprintf("servo IDs %v", ids)))
		}
	}
	return nil
}
