// Command client is a terminal client for the localchat line protocol.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	addr := flag.String("addr", envDefault("LOCALCHAT_ADDR", "localhost:6250"), "Server address (env: LOCALCHAT_ADDR)")
	name := flag.String("name", envDefault("LOCALCHAT_NAME", ""), "Account to connect as (env: LOCALCHAT_NAME)")
	password := flag.String("password", envDefault("LOCALCHAT_PASSWORD", ""), "Account password (env: LOCALCHAT_PASSWORD)")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	p := tea.NewProgram(newModel(*addr, conn), tea.WithAltScreen())
	go readServer(p, conn)

	if *name != "" {
		fmt.Fprintf(conn, "connect %s %s\r\n", *name, *password)
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

// readServer forwards server lines to the program until the connection
// ends.
func readServer(p *tea.Program, conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 8192), 64*1024)
	for scanner.Scan() {
		p.Send(serverLineMsg(strings.TrimRight(scanner.Text(), "\r")))
	}
	p.Send(disconnectedMsg{err: scanner.Err()})
}
