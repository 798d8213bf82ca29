package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("a", "localhost:8080", "Server address")
	timeout := flag.Duration("t", 5*time.Second, "Connection timeout")
	flag.Parse()

	fmt.Fprintln(os.Stderr, "Request lines, end with an empty line:")
	lines, err := readRequest(bufio.NewReader(os.Stdin))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(*timeout))

	if _, err := io.WriteString(conn, buildRequest(lines)); err != nil {
		log.Fatalf("Error: %v", err)
	}
	if _, err := io.Copy(os.Stdout, conn); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// readRequest collects lines until the first empty one or EOF.
func readRequest(r *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF || (line == "" && err == nil) {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// buildRequest terminates every line with CRLF and appends the blank line
// that ends the header block.
func buildRequest(lines []string) string {
	var builder strings.Builder
	for _, line := range lines {
		builder.WriteString(line)
		builder.WriteString("\r\n")
	}
	builder.WriteString("\r\n")
	return builder.String()
}
