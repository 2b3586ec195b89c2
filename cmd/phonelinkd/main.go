package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mvasconc/phonelink/internal/daemon"
	"github.com/mvasconc/phonelink/internal/session"
	"go.uber.org/fx"
)

func main() {
	deviceFlag := flag.String("device", "", "device id (overrides config default)")
	flag.Parse()

	deviceID := session.Resolve(*deviceFlag)
	if err := session.ValidateDeviceID(deviceID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{DeviceID: deviceID}),
	)

	app.Run()
}
