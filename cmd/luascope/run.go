package main

import (
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/luascope/internal/config"
	"github.com/dshills/luascope/internal/engine"
	"github.com/dshills/luascope/internal/inspector"
	inspectorio "github.com/dshills/luascope/internal/inspector/io"
	"github.com/dshills/luascope/internal/platform"
)

// inspectDefault marks --inspect given without an address.
const inspectDefault = "default"

func newRunCmd() *cobra.Command {
	var (
		inspectFlag string
		inspectBrk  bool
	)

	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script, optionally under the debugger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inspect := inspectFlag != ""
			addr := inspectFlag
			if addr == inspectDefault {
				addr = ""
			}
			return runScript(args[0], inspect, addr, inspectBrk)
		},
	}

	cmd.Flags().StringVar(&inspectFlag, "inspect", "", "start the debugger endpoint, optionally at host:port")
	cmd.Flags().Lookup("inspect").NoOptDefVal = inspectDefault
	cmd.Flags().BoolVar(&inspectBrk, "inspect-brk", false, "start the debugger endpoint and pause before the first statement")

	return cmd
}

func runScript(path string, inspect bool, inspectAddr string, inspectBrk bool) error {
	env := engine.New(engine.Options{})
	defer env.Close()

	pump := platform.NewTaskPump()

	agent := inspector.New(log,
		inspector.WithIoRunnerFactory(inspectorio.Factory(log)),
		inspector.WithConfigOverride(func(c *config.Config) {
			if inspect || inspectBrk {
				c.Enabled = true
			}
			if inspectBrk {
				c.BreakOnStart = true
			}
			if inspectAddr != "" {
				applyAddr(c, inspectAddr)
			}
		}),
	)
	if err := agent.Start(env, pump, cfgFile); err != nil {
		return err
	}
	defer agent.Close()

	// SIGUSR1 starts the debugger endpoint on demand, from any point in
	// the script's run.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			agent.RequestIoThreadStart()
		}
	}()

	// Deliver work queued during startup (the front-end attach lands
	// here when the agent waited for a connection).
	for pump.PumpMessageLoop() {
	}

	if agent.Config().BreakOnStart {
		// Hold the script until the front-end finishes its setup
		// handshake; otherwise the pause would arm before Debugger.enable
		// arrives and never fire.
		for agent.IsConnected() && !agent.FrontendReady() {
			select {
			case <-pump.WakeChannel():
			case <-agent.WakeChan():
				agent.ServiceWake()
			}
			for pump.PumpMessageLoop() {
			}
		}
		agent.PauseOnNextJavascriptStatement("Break on start")
	}

	runErr := env.RunFile(path)

	// Drain work the script left behind before teardown.
	for pump.PumpMessageLoop() {
	}
	drainWake(agent)

	if runErr != nil {
		var serr *engine.ScriptError
		if errors.As(runErr, &serr) {
			agent.FatalException(serr)
		}
		return runErr
	}

	if agent.IsConnected() {
		agent.WaitForDisconnect()
	}
	return nil
}

// drainWake services a pending event-loop wake without blocking.
func drainWake(a *inspector.Agent) {
	ch := a.WakeChan()
	if ch == nil {
		return
	}
	select {
	case <-ch:
		a.ServiceWake()
	default:
	}
}

// applyAddr overrides the endpoint from a host:port flag. A bare port
// or bare host is accepted too.
func applyAddr(c *config.Config, addr string) {
	if port, err := strconv.Atoi(addr); err == nil {
		c.Port = port
		return
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		c.Host = addr
		return
	}
	if host != "" {
		c.Host = host
	}
	if port, err := strconv.Atoi(portStr); err == nil {
		c.Port = port
	}
}
