// Command bpchat is an interactive console for the socket engine: it
// listens on a local endpoint, sends each stdin line to a distant endpoint,
// and prints every engine event as it arrives.
//
// UDP/TCP usage:
//
//	bpchat --protocol udp --local-port 9001 --dist-port 9002
//
// Bundle protocol usage:
//
//	bpchat --protocol bp --local-addr ipn:1.1 --dist-addr ipn:2.1
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	socketengine "github.com/DTN-MTP/socket-engine"
	"github.com/DTN-MTP/socket-engine/endpoint"
	"github.com/DTN-MTP/socket-engine/event"
)

type consoleObserver struct{}

func (consoleObserver) OnEngineEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.Received:
		fmt.Printf("[RECV] From %s: %q\n", e.From, strings.TrimSpace(string(e.Data)))
	case event.Sending:
		fmt.Printf("[SENDING] To %s (%d bytes, token %s)\n", e.To, e.Bytes, e.Token)
	case event.Sent:
		fmt.Printf("[SENT] To %s (%d bytes)\n", e.To, e.BytesSent)
	case event.ListenerStarted:
		fmt.Printf("[INFO] Listener started on %s\n", e.Endpoint)
	case event.Established:
		fmt.Printf("[INFO] Connection established with %s\n", e.Remote)
	case event.Closed:
		if e.Remote != nil {
			fmt.Printf("[INFO] Connection closed with %s\n", *e.Remote)
		} else {
			fmt.Println("[INFO] Connection closed")
		}
	case event.ConnectionFailed:
		fmt.Printf("[ERROR] Connection failed to %s (%s): %s\n", e.Endpoint, e.Reason, e.Message)
	case event.SendFailed:
		fmt.Printf("[ERROR] Send failed to %s for token %s: %s\n", e.Endpoint, e.Token, e.Reason)
	case event.ReceiveFailed:
		fmt.Printf("[ERROR] Receive failed on %s: %s\n", e.Endpoint, e.Reason)
	case event.SocketError:
		fmt.Printf("[ERROR] Socket error on %s: %s\n", e.Endpoint, e.Reason)
	}
}

func resolveEndpoints(proto, ip string, localPort, distPort uint16, localAddr, distAddr string) (endpoint.Endpoint, endpoint.Endpoint, error) {
	var localSpec, distSpec string
	switch strings.ToLower(proto) {
	case "udp", "tcp":
		if localPort == 0 || distPort == 0 {
			return endpoint.Endpoint{}, endpoint.Endpoint{}, fmt.Errorf("--local-port and --dist-port are required for %s", proto)
		}
		localSpec = fmt.Sprintf("%s %s:%d", proto, ip, localPort)
		distSpec = fmt.Sprintf("%s %s:%d", proto, ip, distPort)
	case "bp":
		if localAddr == "" || distAddr == "" {
			return endpoint.Endpoint{}, endpoint.Endpoint{}, fmt.Errorf("--local-addr and --dist-addr are required for bp")
		}
		localSpec = "bp " + localAddr
		distSpec = "bp " + distAddr
	default:
		return endpoint.Endpoint{}, endpoint.Endpoint{}, fmt.Errorf("unknown protocol %q (want udp, tcp, or bp)", proto)
	}

	local, err := endpoint.Parse(localSpec)
	if err != nil {
		return endpoint.Endpoint{}, endpoint.Endpoint{}, fmt.Errorf("invalid local endpoint: %w", err)
	}
	dist, err := endpoint.Parse(distSpec)
	if err != nil {
		return endpoint.Endpoint{}, endpoint.Endpoint{}, fmt.Errorf("invalid distant endpoint: %w", err)
	}
	return local, dist, nil
}

func main() {
	proto := flag.StringP("protocol", "p", "", "protocol to use (udp, tcp, bp)")
	localPort := flag.Uint16P("local-port", "l", 0, "local port to listen on (udp/tcp)")
	distPort := flag.Uint16P("dist-port", "d", 0, "distant port to send to (udp/tcp)")
	ip := flag.StringP("ip", "i", "127.0.0.1", "IP address (udp/tcp)")
	localAddr := flag.StringP("local-addr", "L", "", "local address, e.g. ipn:1.1 (bp)")
	distAddr := flag.StringP("dist-addr", "D", "", "distant address, e.g. ipn:2.1 (bp)")
	flag.Parse()

	// Keep the console readable; engine internals log at debug level.
	logrus.SetLevel(logrus.WarnLevel)

	local, dist, err := resolveEndpoints(*proto, *ip, *localPort, *distPort, *localAddr, *distAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	engine := socketengine.New(socketengine.NewOptions())
	engine.AddObserver(consoleObserver{})
	engine.StartListenerAsync(local)

	fmt.Printf("Listening on %s, sending to %s. Type a message and press enter.\n", local, dist)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		engine.SendAsync(&local, dist, []byte(text), uuid.NewString())
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "stdin:", err)
		os.Exit(1)
	}
}
