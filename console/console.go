// Package console reads operator commands and applies them to a running server.
package console

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Controller is the part of the server the console drives.
type Controller interface {
	Addr() net.Addr
	Stop() error
	Restart(addr string) error
}

// Console executes one command per input line.
type Console struct {
	in   io.Reader
	out  io.Writer
	ctl  Controller
	host string
}

// New returns a console that keeps the host part of the listening address
// when the port is changed.
func New(in io.Reader, out io.Writer, ctl Controller, host string) *Console {
	return &Console{in: in, out: out, ctl: ctl, host: host}
}

// Run executes commands until "exit" or the end of input, and stops the
// server on the way out.
func (c *Console) Run() error {
	fmt.Fprintln(c.out, `Type "help" for a list of available commands.`)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if quit := c.Exec(scanner.Text()); quit {
			return nil
		}
	}
	if err := c.ctl.Stop(); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return scanner.Err()
}

// Exec runs a single command line and reports whether the console should quit.
func (c *Console) Exec(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "exit":
		if len(fields) != 1 {
			break
		}
		fmt.Fprintln(c.out, "Stopping Server.")
		if err := c.ctl.Stop(); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		return true

	case "help":
		if len(fields) != 1 {
			break
		}
		fmt.Fprintln(c.out, "Known commands:")
		fmt.Fprintln(c.out, "exit        Stop the server.")
		fmt.Fprintln(c.out, "help        List all available commands.")
		fmt.Fprintln(c.out, "port        Print current port.")
		fmt.Fprintln(c.out, "port <n>    Move the server to port <n>.")
		return false

	case "port":
		switch len(fields) {
		case 1:
			c.printPort()
			return false
		case 2:
			port, err := strconv.Atoi(fields[1])
			if err != nil || port < 0 || port > 65535 {
				fmt.Fprintf(c.out, "Invalid port: %s\n", fields[1])
				return false
			}
			if err := c.ctl.Restart(net.JoinHostPort(c.host, strconv.Itoa(port))); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
				return false
			}
			c.printPort()
			return false
		}
	}

	fmt.Fprintf(c.out, "Unknown command: %s. Type help for known commands.\n", line)
	return false
}

func (c *Console) printPort() {
	addr, ok := c.ctl.Addr().(*net.TCPAddr)
	if !ok {
		fmt.Fprintln(c.out, "Server is not listening.")
		return
	}
	fmt.Fprintf(c.out, "Server listening on port %d.\n", addr.Port)
}
